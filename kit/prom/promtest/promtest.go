// Package promtest provides helpers for extracting gathered prometheus
// metrics in tests.
package promtest

import (
	"fmt"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// FindMetric returns the first metric of the family called name whose labels
// equal labels, or nil.
func FindMetric(mfs []*dto.MetricFamily, name string, labels map[string]string) *dto.Metric {
	_, m := findMetric(mfs, name, labels)
	return m
}

// MustFindMetric is FindMetric that fails tb, listing what was gathered,
// when no metric matches.
func MustFindMetric(tb testing.TB, mfs []*dto.MetricFamily, name string, labels map[string]string) *dto.Metric {
	tb.Helper()

	fam, m := findMetric(mfs, name, labels)
	if fam == nil {
		tb.Logf("metric family with name %q not found", name)
		tb.Log("available names:")
		for _, mf := range mfs {
			tb.Logf("\t%s", mf.GetName())
		}
		tb.FailNow()
		return nil
	}

	if m == nil {
		tb.Logf("metric family %q has no metric with labels %v, available:", name, labels)
		for _, m := range fam.Metric {
			pairs := make([]string, len(m.Label))
			for i, l := range m.Label {
				pairs[i] = fmt.Sprintf("%q: %q", l.GetName(), l.GetValue())
			}
			tb.Logf("\t%s", strings.Join(pairs, ", "))
		}
		tb.FailNow()
		return nil
	}

	return m
}

func findMetric(mfs []*dto.MetricFamily, name string, labels map[string]string) (*dto.MetricFamily, *dto.Metric) {
	var fam *dto.MetricFamily
	for _, mf := range mfs {
		if mf.GetName() == name {
			fam = mf
			break
		}
	}
	if fam == nil {
		return nil, nil
	}

next:
	for _, m := range fam.Metric {
		if len(m.Label) != len(labels) {
			continue
		}
		for _, l := range m.Label {
			if labels[l.GetName()] != l.GetValue() {
				continue next
			}
		}
		return fam, m
	}
	return fam, nil
}

// MustGather calls g.Gather and calls tb.Fatal if there was an error.
func MustGather(tb testing.TB, g prometheus.Gatherer) []*dto.MetricFamily {
	tb.Helper()

	mfs, err := g.Gather()
	if err != nil {
		tb.Fatalf("error while gathering metrics: %v", err)
		return nil
	}
	return mfs
}
