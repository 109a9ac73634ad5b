package main

import (
	"flag"

	"github.com/golang/glog"
	"github.com/spf13/viper"

	"github.com/hbkit/hbkit/config"
	"github.com/hbkit/hbkit/router"
	"github.com/hbkit/hbkit/server"
	"github.com/hbkit/hbkit/version"
)

func main() {
	flag.Parse() // required for glog flags and testing package flags

	cfg, err := loadConfig()
	if err != nil {
		glog.Exitf("Configuration could not be loaded or did not pass validation: %v", err)
	}

	if err := serve(cfg); err != nil {
		glog.Exitf("hbkit failed: %v", err)
	}
}

const configFileName = "hbkit"

func loadConfig() (*config.Configuration, error) {
	v := viper.New()
	config.SetupViper(v, configFileName)
	return config.New(v)
}

func serve(cfg *config.Configuration) error {
	r, err := router.New(cfg)
	if err != nil {
		return err
	}

	corsRouter := router.SupportCORS(r)
	server.Listen(cfg, router.NoCache{Handler: corsRouter}, router.Admin(version.Ver, version.Rev), r.MetricsRegistry)

	r.Shutdown()
	return nil
}
