package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

func LoadEnv() {
	err := godotenv.Load()
	if err != nil {
		log.Println("⚠️ Warning: .env file not found, using system environment variables")
	}
}

func main() {

	// Load .env variables
	LoadEnv()

	if os.Getenv("SESSION_SECRET") == "" {
		log.Fatal("❌ SESSION_SECRET is missing in .env")
	}
	log.Println("🔐 SESSION_SECRET loaded successfully")

	// Wire the ShoutMe API client
	InitAPI()

	// Start Gin
	r := NewRouter()

	addr := listenAddr()
	log.Println("🚀 ShoutMe web client running on http://localhost" + addr)
	if err := r.Run(addr); err != nil {
		log.Fatal("❌ Server failed: ", err)
	}
}
