// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command crosstab computes survey crosstab breaks over respondent data.
//
// Usage:
//
//	crosstab validate --breaks breaks.yaml
//	crosstab run --breaks breaks.yaml --data respondents.yaml
//	crosstab import --data respondents.yaml --db ./crosstab.db
//	crosstab run --breaks breaks.yaml --db ./crosstab.db --format json
//	crosstab watch --breaks breaks.yaml --data respondents.yaml --metrics-addr :9464
//
// Telemetry follows the OTEL_* environment variables; see the telemetry
// package for the supported exporters.
package main

import (
	"context"
	"fmt"
	"os"
)

func main() {
	if err := execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "crosstab: %v\n", err)
		os.Exit(1)
	}
}
