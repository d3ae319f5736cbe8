package resources

import "github.com/flowline-data/ingest-go/ingesterr"

var errNoContainers = ingesterr.New(ingesterr.NoContainersAvailable, "no containers or lake folders are configured for the requested upload method")
