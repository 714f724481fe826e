// Copyright (c) 2025 The preheat authors.
// SPDX-License-Identifier: Apache-2.0

package preheat

import (
	"context"

	"github.com/go-preheat/preheat/internal/async"
	"github.com/go-preheat/preheat/internal/cache"
	"github.com/go-preheat/preheat/internal/config"
	"github.com/go-preheat/preheat/internal/netstatus"
	"github.com/go-preheat/preheat/internal/origin"
	"github.com/go-preheat/preheat/internal/preload"
	"github.com/go-preheat/preheat/internal/request"
	"github.com/go-preheat/preheat/internal/tui"
	"github.com/go-preheat/preheat/internal/viewstate"
)

// Cache service.
type (
	CacheService = cache.Service
	CacheEntry   = cache.Entry
	CacheStats   = cache.Stats
	CacheEvent   = cache.Event
	CacheOp      = cache.Op
	CacheOption  = cache.Option
)

const (
	CacheDefaultTTL = cache.DefaultTTL
	CacheNoExpire   = cache.NoExpire
)

var (
	NewCacheService    = cache.New
	CacheDir           = cache.Dir
	CacheEnabled       = cache.Enabled
	WithDefaultTTL     = cache.WithDefaultTTL
	WithMaxEntries     = cache.WithMaxEntries
	WithDiskDir        = cache.WithDiskDir
	WithCacheNamespace = cache.WithNamespace
)

// Connection monitor.
type (
	ConnectionStatus = netstatus.ConnectionStatus
	ConnectionSpeed  = netstatus.ConnectionSpeed
	Snapshot         = netstatus.Snapshot
	Monitor          = netstatus.Monitor
	MonitorOption    = netstatus.Option
)

const (
	StatusUnknown  = netstatus.StatusUnknown
	StatusOnline   = netstatus.StatusOnline
	StatusDegraded = netstatus.StatusDegraded
	StatusOffline  = netstatus.StatusOffline

	SpeedUnknown  = netstatus.SpeedUnknown
	SpeedFast     = netstatus.SpeedFast
	SpeedModerate = netstatus.SpeedModerate
	SpeedSlow     = netstatus.SpeedSlow

	DefaultProbeURL         = netstatus.DefaultProbeURL
	DefaultProbeInterval    = netstatus.DefaultInterval
	DefaultProbeTimeout     = netstatus.DefaultTimeout
	DefaultFailureThreshold = netstatus.DefaultFailureThreshold
)

var (
	NewMonitor           = netstatus.NewMonitor
	WithProbeURL         = netstatus.WithProbeURL
	WithProbeInterval    = netstatus.WithInterval
	WithProbeTimeout     = netstatus.WithTimeout
	WithProbeClient      = netstatus.WithHTTPClient
	WithFailureThreshold = netstatus.WithFailureThreshold
)

// Request manager.
type (
	RequestManager = request.Manager
	Request        = request.Request
	Result         = request.Result
	RequestStats   = request.Stats
	Policy         = request.Policy
	RequestOption  = request.Option
)

const (
	PolicyCacheFirst = request.PolicyCacheFirst
	PolicyRevalidate = request.PolicyRevalidate
	PolicyBypass     = request.PolicyBypass
)

var (
	ErrOffline        = request.ErrOffline
	NewRequestManager = request.NewManager
	ParsePolicy       = request.ParsePolicy
	WithNegativeTTL   = request.WithNegativeTTL
	WithRetryOptions  = request.WithRetryOptions
)

// Payload origins.
type (
	Origin     = origin.Origin
	OriginMeta = origin.Meta
	Registry   = origin.Registry
	HTTPOption = origin.HTTPOption
	S3Option   = origin.S3Option
)

var (
	NewRegistry         = origin.NewRegistry
	DefaultOrigins      = origin.Default
	NewHTTPOrigin       = origin.NewHTTPOrigin
	NewS3Origin         = origin.NewS3Origin
	WithOriginClient    = origin.WithHTTPClient
	WithOriginToken     = origin.WithToken
	WithOriginUserAgent = origin.WithUserAgent
	WithS3Profile       = origin.WithS3Profile
	WithS3Region        = origin.WithS3Region
)

// View preloading.
type (
	PreloadManager = preload.Manager
	View           = preload.View
	Priority       = preload.Priority
	WarmStatus     = preload.Status
	Outcome        = preload.Outcome
	Report         = preload.Report
	PreloadOption  = preload.Option
)

const (
	PriorityNormal = preload.PriorityNormal
	PriorityHigh   = preload.PriorityHigh
	PriorityLow    = preload.PriorityLow

	StatusWarmed  = preload.StatusWarmed
	StatusFresh   = preload.StatusFresh
	StatusStale   = preload.StatusStale
	StatusSkipped = preload.StatusSkipped
	StatusFailed  = preload.StatusFailed
)

var (
	NewPreloadManager = preload.NewManager
	ViewsFromConfig   = preload.ViewsFromConfig
	WithConcurrency   = preload.WithConcurrency
	WithHintGap       = preload.WithHintGap
)

// View session tracking.
type (
	Session       = viewstate.Session
	Binding       = viewstate.Binding
	Transition    = viewstate.Transition
	SwitchStats   = viewstate.SwitchStats
	ViewState     = viewstate.State
	SessionOption = viewstate.Option
)

const (
	StateCold = viewstate.StateCold
	StateWarm = viewstate.StateWarm
	StateHot  = viewstate.StateHot
)

var (
	NewSession      = viewstate.NewSession
	WithWarmWindow  = viewstate.WithWarmWindow
	WithHistorySize = viewstate.WithHistorySize
)

// Async helpers.
type (
	Debouncer         = async.Debouncer
	DebounceOption    = async.DebounceOption
	Throttler         = async.Throttler
	RetryOption       = async.RetryOption
	CachedFunc[T any] = async.CachedFunc[T]
)

var (
	NewDebouncer        = async.NewDebouncer
	NewThrottler        = async.NewThrottler
	Retry               = async.Retry
	Permanent           = async.Permanent
	WithInitialInterval = async.WithInitialInterval
	WithMaxInterval     = async.WithMaxInterval
	WithMaxRetries      = async.WithMaxRetries
)

// Memoize caches f's first successful result for every later call.
func Memoize[T any](f func() (T, error)) func() (T, error) {
	return async.Memoize(f)
}

// NewCachedFunc is Memoize with an explicit Flush.
func NewCachedFunc[T any](f func() (T, error)) *CachedFunc[T] {
	return async.NewCachedFunc(f)
}

// RetryWithData runs op under the retry budget and hands back its value.
func RetryWithData[T any](ctx context.Context, op func() (T, error), opts ...RetryOption) (T, error) {
	return async.RetryWithData(ctx, op, opts...)
}

// Terminal components.
type (
	Dashboard       = tui.Dashboard
	DashboardOption = tui.DashboardOption
	Styles          = tui.Styles
	Skeleton        = tui.Skeleton
	Loading         = tui.Loading
	StatusBar       = tui.StatusBar
	WarmProgress    = tui.WarmProgress
	ReloadMsg       = tui.ReloadMsg
)

const DefaultReloadDelay = tui.DefaultReloadDelay

var (
	NewDashboard        = tui.NewDashboard
	DefaultStyles       = tui.DefaultStyles
	NewSkeleton         = tui.NewSkeleton
	NewLoading          = tui.NewLoading
	NewStatusBar        = tui.NewStatusBar
	NewWarmProgress     = tui.NewWarmProgress
	WatchConfig         = tui.WatchConfig
	WithDashboardStyles = tui.WithDashboardStyles
)

// Configuration.
type Config = config.Type

// LoadConfig reads preheat.yaml from the standard locations (or PREHEAT_CFG).
var LoadConfig = config.Load
