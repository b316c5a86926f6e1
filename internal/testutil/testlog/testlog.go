package testlog

import (
	"testing"

	"github.com/danmuck/agentctl/internal/logging"
)

func Start(t *testing.T) {
	t.Helper()
	log := logging.ConfigureTests()
	log.Info().Str("test", t.Name()).Msg("start")
}
