// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package metrics

import "github.com/prometheus/client_golang/prometheus"

// RuleCounters is one tagged drop rule as seen in the kernel.
type RuleCounters struct {
	MAC     string
	Packets uint64
	Bytes   uint64
}

var (
	enforcedRulesDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "nftables", "rules"),
		"Drop rules owned by the daemon present in the kernel chain",
		nil, nil,
	)
	droppedPacketsDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "nftables", "dropped_packets_total"),
		"Packets matched by a drop rule, by source MAC",
		[]string{"mac"}, nil,
	)
	droppedBytesDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "nftables", "dropped_bytes_total"),
		"Bytes matched by a drop rule, by source MAC",
		[]string{"mac"}, nil,
	)
)

// RuleCollector reads the kernel chain on every scrape.
type RuleCollector struct {
	list func() ([]RuleCounters, error)
}

// NewRuleCollector wraps a rule listing function.
func NewRuleCollector(list func() ([]RuleCounters, error)) *RuleCollector {
	return &RuleCollector{list: list}
}

func (c *RuleCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- enforcedRulesDesc
	ch <- droppedPacketsDesc
	ch <- droppedBytesDesc
}

func (c *RuleCollector) Collect(ch chan<- prometheus.Metric) {
	rules, err := c.list()
	if err != nil {
		ch <- prometheus.NewInvalidMetric(enforcedRulesDesc, err)
		return
	}

	byMAC := make(map[string]RuleCounters, len(rules))
	for _, r := range rules {
		agg := byMAC[r.MAC]
		agg.MAC = r.MAC
		agg.Packets += r.Packets
		agg.Bytes += r.Bytes
		byMAC[r.MAC] = agg
	}

	ch <- prometheus.MustNewConstMetric(enforcedRulesDesc, prometheus.GaugeValue, float64(len(rules)))
	for mac, r := range byMAC {
		ch <- prometheus.MustNewConstMetric(droppedPacketsDesc, prometheus.CounterValue, float64(r.Packets), mac)
		ch <- prometheus.MustNewConstMetric(droppedBytesDesc, prometheus.CounterValue, float64(r.Bytes), mac)
	}
}
