package providers

import (
	"github.com/samber/do/v2"

	"github.com/zotairo/zotairo-server/internal/config"
	"github.com/zotairo/zotairo-server/internal/llm"
	"github.com/zotairo/zotairo-server/internal/logger"
	"github.com/zotairo/zotairo-server/internal/webdav"
	"github.com/zotairo/zotairo-server/internal/zotero"
)

// ZoteroClientHandle wraps the Zotero client with shutdown capability.
type ZoteroClientHandle struct {
	*zotero.Client
}

// Shutdown implements do.Shutdownable.
func (h *ZoteroClientHandle) Shutdown() error {
	h.Close()
	return nil
}

// ProvideZoteroClient provides the rate-limited Zotero API client.
func ProvideZoteroClient(i do.Injector) (*ZoteroClientHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	client := zotero.New(zotero.Config{
		BaseURL:           cfg.Zotero.BaseURL,
		APIKey:            cfg.Zotero.APIKey,
		UserID:            cfg.Zotero.UserID,
		Timeout:           cfg.Zotero.Timeout,
		RequestsPerSecond: cfg.Zotero.RequestsPerSecond,
	}, log.Component("zotero"))

	log.Info("Zotero client ready",
		"base_url", cfg.Zotero.BaseURL,
		"user_id", cfg.Zotero.UserID,
		"requests_per_second", cfg.Zotero.RequestsPerSecond,
	)

	return &ZoteroClientHandle{Client: client}, nil
}

// WebDAVClientHandle holds the optional attachment mirror client. Client is nil when disabled.
type WebDAVClientHandle struct {
	Client *webdav.Client
}

// ProvideWebDAVClient provides the WebDAV client when all credentials are configured.
func ProvideWebDAVClient(i do.Injector) (*WebDAVClientHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if !cfg.WebDAV.Enabled() {
		log.Info("WebDAV mirror disabled")
		return &WebDAVClientHandle{}, nil
	}

	client := webdav.New(webdav.Config{
		URL:      cfg.WebDAV.URL,
		User:     cfg.WebDAV.User,
		Password: cfg.WebDAV.Password,
		Timeout:  cfg.WebDAV.Timeout,
		TempDir:  cfg.Storage.DataPath,
	}, log.Component("webdav"))

	log.Info("WebDAV mirror enabled", "url", cfg.WebDAV.URL)
	return &WebDAVClientHandle{Client: client}, nil
}

// ProvideLLMRegistry registers every supported provider. Keys are supplied per request.
func ProvideLLMRegistry(i do.Injector) (*llm.Registry, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	registry := llm.NewRegistry(
		llm.NewGemini(llm.GeminiConfig{Timeout: cfg.LLM.Timeout}, log.Logger),
		llm.NewOpenAI("", cfg.LLM.Timeout, log.Logger),
		llm.NewOpenRouter("", cfg.LLM.Timeout, log.Logger),
		llm.NewDeepSeek("", cfg.LLM.Timeout, log.Logger),
	)

	log.Info("LLM providers registered", "providers", registry.Names())
	return registry, nil
}

// providerKeys maps provider names to their configured default keys.
func providerKeys(cfg *config.Config) map[string]string {
	return map[string]string{
		"google":     cfg.LLM.GoogleAPIKey,
		"openai":     cfg.LLM.OpenAIAPIKey,
		"openrouter": cfg.LLM.OpenRouterAPIKey,
		"deepseek":   cfg.LLM.DeepSeekAPIKey,
	}
}
