package server

// The OpenAPI description lives in ./docs and is registered with swag on
// import; regenerate it after changing routes.
//go:generate swag init -g internal/server/swagger.go -o internal/server/docs

// @title compliscan API
// @version 0.1
// @description Website compliance scans, scheduled scans and uptime monitoring.
// @contact.name compliscan maintainers
// @contact.url https://github.com/raysh454/compliscan
// @securityDefinitions.apikey AccountID
// @in header
// @name X-Account-ID
// @BasePath /
