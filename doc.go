// Package bikedemand predicts station-hour demand imbalance for a bike-share
// network in Tokyo's 23 special wards.
//
// The pipeline joins three inputs: static station metadata (JSON), periodic
// inventory snapshots (CSV) and an hourly weather export (Shift-JIS). Each
// station-hour is labeled undersupply, balanced or oversupply from the
// change in available bikes relative to station capacity. A class-weighted
// gradient boosted tree regressor (or ridge, with model.kind: ridge)
// produces a continuous score, and two cut-points fitted by Nelder-Mead
// maximize quadratic weighted kappa on the training split.
//
// # Layout
//
//   - ingest: readers for the three raw inputs
//   - category, density, station: lookup tables, ward density and facility types
//   - merge: station and weather joins
//   - features: derived ratios, deltas, net demand and the class label
//   - preprocessing: standardization
//   - lightgbm: histogram GBDT regressor, the default model
//   - linear: the ridge alternative
//   - thresholds, metrics: cut-point search and kappa
//   - evaluation: reports, XLSX workbook and PNG charts
//   - pipeline: stage orchestration
//   - cmd/bikedemand: command-line entry point
//
// # Quick Start
//
//	cfg, err := config.Load("bikedemand.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	res, err := pipeline.Run(ctx, cfg, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("test QWK %.3f\n", res.Test.QWK)
//
// Errors are built with pkg/errors (cockroachdb/errors underneath) and
// non-fatal conditions such as an optimizer that stops early are raised as
// warnings routed into the zerolog logger configured by pkg/log.Setup.
package bikedemand
