// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"flag"
	"log"

	"github.com/relabs-tech/foot_ins/internal/app"
	"github.com/relabs-tech/foot_ins/internal/config"
)

func main() {
	configPath := flag.String("config", "./foot_ins_config.txt", "path to configuration file")
	in := flag.String("in", "", "recorded IMU CSV (AccX,AccY,AccZ,GyrX,GyrY,GyrZ)")
	name := flag.String("name", "", "name of the result files (defaults to the run id)")
	flag.Parse()

	if *in == "" {
		log.Fatalf("missing -in")
	}

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunOffline(*in, *name); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
