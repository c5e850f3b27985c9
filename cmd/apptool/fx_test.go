package apptool

import (
	"testing"

	"go.insight.network/gateway/cmd/providers/providerstest"
	"go.uber.org/fx"
)

func TestApp(t *testing.T) {
	providerstest.Validate(t,
		fx.Supply([]string{}),
		fx.Invoke(runSetSSO))
}
