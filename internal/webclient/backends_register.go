package webclient

import "github.com/raysh454/compliscan/internal/logging"

func init() {
	RegisterBackend(string(ClientNetHTTP), func(cfg Config, logger logging.Logger) (WebClient, error) {
		c, err := NewNetHTTPClient(cfg, logger, nil)
		if err != nil {
			return nil, err
		}
		return c, nil
	})
	RegisterBackend(string(ClientChromedp), func(cfg Config, logger logging.Logger) (WebClient, error) {
		c, err := NewChromedpClient(cfg, logger)
		if err != nil {
			return nil, err
		}
		return c, nil
	})
}
