// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package systemd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnit(t *testing.T) {
	assert.Equal(t, "smbd.service", unit("smbd"))
	assert.Equal(t, "winbind.service", unit("winbind.service"))
}

func TestServiceStatusString(t *testing.T) {
	st := ServiceStatus{
		Name:    "smbd",
		Service: "smbd.service",
		Status:  "active (running)",
		Health:  "healthy",
		State:   "running",
	}
	assert.Equal(t, "smbd (smbd.service) is running [active (running)]", st.String())
	assert.Equal(t, st.String(), st.InstanceGist())
}
