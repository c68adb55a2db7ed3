// Package rilio provides a multiplexing client for a length-prefixed,
// request/response telephony control protocol over a stream socket.
/*
 * Copyright (c) 2025-2026, the rilio authors. All rights reserved.
 */
package rilio_test

import (
	"testing"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

func TestChannel(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, t.Name())
}
