package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/figmaqa/internal/common"
)

const redactedValue = "********"

// ConfigHandler exposes the running configuration with credentials masked
type ConfigHandler struct {
	logger arbor.ILogger
	config *common.Config
}

func NewConfigHandler(logger arbor.ILogger, config *common.Config) *ConfigHandler {
	return &ConfigHandler{
		logger: logger,
		config: config,
	}
}

// ConfigResponse represents the configuration response
type ConfigResponse struct {
	Version string         `json:"version"`
	Port    int            `json:"port"`
	Host    string         `json:"host"`
	Config  *common.Config `json:"config"`
}

// GetConfig handles GET /api/config
func (h *ConfigHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	config := redactConfig(h.config)
	if err := WriteJSON(w, http.StatusOK, ConfigResponse{
		Version: common.GetVersion(),
		Port:    config.Server.Port,
		Host:    config.Server.Host,
		Config:  config,
	}); err != nil {
		h.logger.Error().Err(err).Msg("Failed to encode config response")
	}
}

// redactConfig returns a copy with every secret replaced
func redactConfig(cfg *common.Config) *common.Config {
	c := *cfg
	mask := func(s *string) {
		if *s != "" {
			*s = redactedValue
		}
	}
	mask(&c.Figma.Token)
	mask(&c.Figma.OAuth.ClientSecret)
	mask(&c.Gemini.APIKey)
	mask(&c.Claude.APIKey)
	c.LLM.FallbackModels = append([]string(nil), cfg.LLM.FallbackModels...)
	c.Logging.Output = append([]string(nil), cfg.Logging.Output...)
	return &c
}
