/*
 * Copyright (c) 2022. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package tool

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

const (
	// Constant value for linux platform except alpha and ia64.
	defaultClkTck = 100
)

func FormatFloat64(f float64, point int) float64 {
	var value float64
	switch point {
	case 6:
		value, _ = strconv.ParseFloat(fmt.Sprintf("%.6f", f), 64)
	case 2:
		fallthrough
	default:
		value, _ = strconv.ParseFloat(fmt.Sprintf("%.2f", f), 64)
	}

	return value
}

// FIXME: return error
func ParseFloat64(val string) float64 {
	floatVal, _ := strconv.ParseFloat(val, 64)
	return floatVal
}

func GetClkTck() float64 {
	getconfPath, err := exec.LookPath("getconf")
	if err != nil {
		logrus.WithError(err).Warn("can not find getconf in the system PATH")
		return defaultClkTck
	}
	out, err := exec.Command(getconfPath, "CLK_TCK").Output()
	if err != nil {
		logrus.WithError(err).Warn("get CLK_TCK failed")
		return defaultClkTck
	}
	return ParseFloat64(strings.ReplaceAll(string(out), "\n", ""))
}

func GetPageSize() float64 {
	return float64(os.Getpagesize())
}
