package handlers

// Start answers /start.
func Start() string {
	return "планировщик запущен\n/jobs - список задач\n/ping - проверка связи"
}

// Ping answers /ping.
func Ping() string { return "pong" }
