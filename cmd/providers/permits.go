package providers

import (
	"net/http"
	"time"

	"github.com/spf13/viper"
	"go.insight.network/gateway/pkg/permits"
	"go.uber.org/zap"
)

// Permission authority config.
const (
	ConfPermitsURL            = "permits.url"
	ConfPermitsTimeout        = "permits.timeout"
	ConfPermitsMaxElapsedTime = "permits.max_elapsed_time"
)

func init() {
	viper.SetDefault(ConfPermitsURL, "")
	viper.SetDefault(ConfPermitsTimeout, 3*time.Second)
	viper.SetDefault(ConfPermitsMaxElapsedTime, 10*time.Second)
}

// NewPermitsClient provides the permission authority client.
func NewPermitsClient(log *zap.Logger) permits.Client {
	url := viper.GetString(ConfPermitsURL)
	if url == "" {
		log.Fatal("Missing " + ConfPermitsURL)
	}
	return &permits.HTTPClient{
		Client:         &http.Client{Timeout: viper.GetDuration(ConfPermitsTimeout)},
		URL:            url,
		MaxElapsedTime: viper.GetDuration(ConfPermitsMaxElapsedTime),
	}
}
