package server

import (
	"context"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"thriftwatch/internal/client"
	"thriftwatch/internal/database"
	"thriftwatch/internal/marketplace"
	"thriftwatch/internal/model"
)

type Server struct {
	DB            database.Database
	Locker        database.Locker
	Registry      *marketplace.Registry
	Aggregator    marketplace.Aggregator
	Scorer        listingScorer
	Client        client.Client
	Logger        logger
	AuthSecretKey jwk.Key
	Policy        Policy
}

// Policy bundles the scheduling and notification knobs a deployment tunes.
type Policy struct {
	Staleness              time.Duration
	BatchSize              int
	BatchDelay             time.Duration
	HighRelevanceThreshold int
	NotificationCap        int
	RecentLookback         int64
}

type logger interface {
	Debug(v ...any)
	Info(v ...any)
	Warn(v ...any)
	Error(v ...any)
	Tracef(format string, v ...any)
	Debugf(format string, v ...any)
	Infof(format string, v ...any)
	Warnf(format string, v ...any)
	Errorf(format string, v ...any)
}

// The pipeline stages depend on these narrow views of the store and the
// scoring and delivery backends, so each stage can be exercised in isolation.
type listingScorer interface {
	AnalyzeBatch(ctx context.Context, ls []model.Listing, criteria model.SearchCriteria) []model.ScoredListing
}

type resultStore interface {
	SearchResultRecentExternalIDs(ctx context.Context, searchID primitive.ObjectID, limit int64) (map[string]struct{}, error)
	SearchResultUpsert(ctx context.Context, rec model.SearchResultRecord) (inserted bool, prevPrice *float64, err error)
}

type notificationStore interface {
	NotificationInsert(ctx context.Context, n model.Notification) (id string, err error)
}

type mailSender interface {
	MailSend(ctx context.Context, mailReq client.MailSendRequest) (client.MailSendResponse, error)
}
