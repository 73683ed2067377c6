package main

import "cpis/internal/app/server"

func main() {
	server.Run()
}
