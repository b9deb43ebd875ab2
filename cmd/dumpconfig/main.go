package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/ncecere/voiceclone/internal/config"
)

func main() {
	configFile := flag.String("config", "", "path to voiceclone.yaml")
	flag.Parse()

	cfg, err := config.Load(config.Options{ConfigFile: *configFile})
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	settings, err := cfg.Settings()
	if err != nil {
		log.Fatalf("dump config: %v", err)
	}
	for _, s := range settings {
		fmt.Printf("%s: %s\n", s.Key, s.Value)
	}
}
