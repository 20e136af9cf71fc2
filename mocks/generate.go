package mocks

//go:generate mockgen -destination=./mock_feed.go -package=mocks github.com/rxtech-lab/argo-broker/internal/feed Feed
//go:generate mockgen -destination=./mock_calendar.go -package=mocks github.com/rxtech-lab/argo-broker/internal/calendar Calendar
