// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package crossing

import (
	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/discard"
	"github.com/go-kit/kit/metrics/provider"
	"github.com/xmidt-org/crossing/xmetrics"
	"go.uber.org/fx"
)

const (
	OccupancyGauge       = "crossing_occupancy"
	WaitingGauge         = "crossing_waiting"
	AdmissionsCounter    = "crossing_admissions_count"
	FlipsCounter         = "crossing_flips_count"
	EnterFailuresCounter = "crossing_enter_failures_count"
)

const (
	DirectionLabel = "direction"
	ReasonLabel    = "reason"

	TimeoutReason  = "timeout"
	CanceledReason = "canceled"
	ClosedReason   = "closed"
)

// Metrics is the crossing module function for metrics
func Metrics() []xmetrics.Metric {
	return []xmetrics.Metric{
		{
			Name: OccupancyGauge,
			Type: xmetrics.GaugeType,
			Help: "The number of actors currently on the crossing",
		},
		{
			Name:       WaitingGauge,
			Type:       xmetrics.GaugeType,
			Help:       "The number of actors waiting to enter the crossing",
			LabelNames: []string{DirectionLabel},
		},
		{
			Name:       AdmissionsCounter,
			Type:       xmetrics.CounterType,
			Help:       "The total number of actors admitted onto the crossing",
			LabelNames: []string{DirectionLabel},
		},
		{
			Name:       FlipsCounter,
			Type:       xmetrics.CounterType,
			Help:       "The total number of direction changes, labeled by the newly permitted direction",
			LabelNames: []string{DirectionLabel},
		},
		{
			Name:       EnterFailuresCounter,
			Type:       xmetrics.CounterType,
			Help:       "The total number of enter attempts that gave up",
			LabelNames: []string{DirectionLabel, ReasonLabel},
		},
	}
}

// Measures is the set of metrics a crossing updates.
type Measures struct {
	Occupancy     metrics.Gauge
	Waiting       metrics.Gauge
	Admissions    metrics.Counter
	Flips         metrics.Counter
	EnterFailures metrics.Counter
}

// NewMeasures realizes the crossing metrics from a go-kit provider.  The provider should
// have been configured with Metrics so that the labeled metrics exist.
func NewMeasures(p provider.Provider) *Measures {
	return &Measures{
		Occupancy:     p.NewGauge(OccupancyGauge),
		Waiting:       p.NewGauge(WaitingGauge),
		Admissions:    p.NewCounter(AdmissionsCounter),
		Flips:         p.NewCounter(FlipsCounter),
		EnterFailures: p.NewCounter(EnterFailuresCounter),
	}
}

// NewDiscardMeasures returns Measures that drop every observation.
func NewDiscardMeasures() *Measures {
	return &Measures{
		Occupancy:     discard.NewGauge(),
		Waiting:       discard.NewGauge(),
		Admissions:    discard.NewCounter(),
		Flips:         discard.NewCounter(),
		EnterFailures: discard.NewCounter(),
	}
}

// ProvideMetrics supplies *Measures to an fx application that provides an xmetrics.Registry
// built with the Metrics module.
func ProvideMetrics() fx.Option {
	return fx.Provide(
		func(r xmetrics.Registry) *Measures {
			return NewMeasures(r)
		},
	)
}
