package main

import (
	"jeop3/cmd/handlers"
	"jeop3/internal/logger"
)

func main() {
	logger.Init()
	handlers.Execute()
}
