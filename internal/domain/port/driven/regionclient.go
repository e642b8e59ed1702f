package driven

import (
	"context"

	"github.com/gateboard/gateboard/internal/domain/model"
)

// BlueRegionClient defines the driven port for the synchronous per-PR
// incremental check result store. An empty result slice is a legitimate
// "inconclusive" state, never an error.
type BlueRegionClient interface {
	FetchResults(ctx context.Context, uuid string) ([]model.BlueResult, error)
}

// YellowRegionClient defines the driven port for the asynchronous devcloud
// check system. FetchCheck returns (nil, nil) when no yellow check exists for
// the event, which resolution treats as a legitimate absent state.
type YellowRegionClient interface {
	FetchCheck(ctx context.Context, uuid string) (*model.DevCloudCheck, error)
}
