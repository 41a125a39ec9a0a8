package commands

import (
	"context"

	"solarweb-backend/lib/configutil"
	"solarweb-backend/lib/restyutil"
	"solarweb-backend/lib/scrapers/solaredge"
	"solarweb-backend/lib/serviceutil"
	"solarweb-backend/services/solarweb"
)

func loadConfig() solarweb.Config {
	cfg, err := configutil.ReadConfig[solarweb.Config]("config.json5")
	if err != nil {
		serviceutil.Fatal("failed to read config.json5", err)
	}
	return cfg
}

func createClient(ctx context.Context, cfg solarweb.Config) *solaredge.Client {
	if *verbose {
		solaredge.SetRestyInstrumentOutput(restyutil.NewFilesystemOutput(".dev/resty/solaredge"))
	}

	client, err := solaredge.NewClient(ctx, solaredge.ClientOptions{
		BaseUrl:  cfg.BaseUrl,
		Username: cfg.Username,
		Password: cfg.Password,
		SiteId:   cfg.SiteId,
	})
	if err != nil {
		serviceutil.Fatal("failed to initialize portal client", err)
	}
	return client
}
