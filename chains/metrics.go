// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chains

import (
	"github.com/luxfi/metric"

	"github.com/luxfi/stm/utils/wrappers"
)

type managerMetrics struct {
	chainsCreated        metric.Counter
	chainsRegistered     metric.Counter
	commitmentMismatches metric.Counter
	upgradesDispatched   metric.Counter
	upgradesExecuted     metric.Counter
	protocolVersion      metric.Gauge
	registeredChains     metric.Gauge
}

func newMetrics(registerer metric.Registerer) (*managerMetrics, error) {
	m := &managerMetrics{
		chainsCreated: metric.NewCounter(metric.CounterOpts{
			Name: "chains_created",
			Help: "Number of chains deployed by the manager",
		}),
		chainsRegistered: metric.NewCounter(metric.CounterOpts{
			Name: "chains_registered",
			Help: "Number of already deployed chains registered by the owner",
		}),
		commitmentMismatches: metric.NewCounter(metric.CounterOpts{
			Name: "commitment_mismatches",
			Help: "Number of revealed payloads rejected by their commitment",
		}),
		upgradesDispatched: metric.NewCounter(metric.CounterOpts{
			Name: "upgrades_dispatched",
			Help: "Number of identity assignment upgrades sent to new chains",
		}),
		upgradesExecuted: metric.NewCounter(metric.CounterOpts{
			Name: "upgrades_executed",
			Help: "Number of upgrades forwarded to registered chains",
		}),
		protocolVersion: metric.NewGauge(metric.GaugeOpts{
			Name: "protocol_version",
			Help: "Current protocol version",
		}),
		registeredChains: metric.NewGauge(metric.GaugeOpts{
			Name: "registered_chains",
			Help: "Number of chain ids with a registered address",
		}),
	}

	errs := wrappers.Errs{}
	errs.Add(
		registerer.Register(metric.AsCollector(m.chainsCreated)),
		registerer.Register(metric.AsCollector(m.chainsRegistered)),
		registerer.Register(metric.AsCollector(m.commitmentMismatches)),
		registerer.Register(metric.AsCollector(m.upgradesDispatched)),
		registerer.Register(metric.AsCollector(m.upgradesExecuted)),
		registerer.Register(metric.AsCollector(m.protocolVersion)),
		registerer.Register(metric.AsCollector(m.registeredChains)),
	)
	return m, errs.Err
}
