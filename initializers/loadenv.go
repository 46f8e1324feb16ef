package initializers

import (
	"fmt"
	"log"

	"github.com/joho/godotenv"
)

func LoadEnv() error {
	log.Println("Loading env file")
	err := godotenv.Load()
	if err != nil {
		log.Println("env not loading")
		return fmt.Errorf("env not loading")
	}
	log.Println("Env loaded successfully")
	return nil
}
