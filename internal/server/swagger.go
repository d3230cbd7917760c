package server

//go:generate swag init -g internal/server/server.go -o docs/swagger

// @title MedTriage Bridge API
// @version 0.1
// @description Local API over the scan job, the history cache and report export.
// @contact.name MedTriage Maintainers
// @BasePath /
