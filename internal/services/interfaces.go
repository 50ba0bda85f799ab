// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

// Package services names the narrow status-reporting contract shared by
// the daemon's service-supervision collaborators (systemd, samba). It
// intentionally carries no lifecycle methods of its own — Start/Stop/
// Restart/ReloadConfig are defined directly on each collaborator's
// Client, since the set of operations differs per service family.
package services

// ServiceStatus is a read-only view of one supervised service's state,
// implemented by systemd.ServiceStatus.
type ServiceStatus interface {
	String() string
	InstanceGist() string
	InstanceName() string
	InstanceService() string
	InstanceStatus() string
	InstanceHealth() string
	InstanceState() string
}
