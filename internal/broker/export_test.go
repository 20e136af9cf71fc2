package broker

import "github.com/prometheus/client_golang/prometheus"

func OrderCounter(c *Collector, account string, security string, side string) prometheus.Counter {
	return c.orderTotal.WithLabelValues(account, security, side)
}

func RejectCounter(c *Collector, account string, side string, reason string) prometheus.Counter {
	return c.rejectTotal.WithLabelValues(account, side, reason)
}
