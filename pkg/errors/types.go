// Copyright 2024-2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2024-2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package errors

// Domain represents the subsystem where the error originated.
type Domain string

// ErrorCode represents a unique error identifier within a Domain.
type ErrorCode int

const (
	DomainLink      Domain = "LINK"
	DomainConfig    Domain = "CONFIG"
	DomainRegistry  Domain = "REGISTRY"
	DomainRpc       Domain = "RPC"
	DomainNotify    Domain = "NOTIFY"
	DomainResource  Domain = "RESOURCE"
	DomainLifecycle Domain = "LIFECYCLE"
	DomainCommand   Domain = "CMD"
	DomainService   Domain = "SERVICE"
)

type CompanionError struct {
	Code    ErrorCode `json:"code"`
	Domain  Domain    `json:"domain"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`

	// Metadata carries structured context (paths, command output, wire
	// fields) useful for logging without bloating Error().
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Error code ranges:
// 1000-1099: Kernel Link (transport)
// 1100-1199: Configuration Importer
// 1200-1299: Client/Pipe Registry
// 1300-1399: RPC collaborator
// 1400-1499: Change-Notify subsystem
// 1500-1599: Resource / allocation
// 1600-1699: Lifecycle management
// 1700-1799: Command execution
// 1800-1899: Service supervision (smbd/systemd)
const (
	LinkSendFailed = 1000 + iota
	LinkRecvFailed
	LinkOversizedMessage
	LinkClosed
	LinkBindFailed
)

const (
	ConfigNotFound = 1100 + iota
	ConfigReadError
	ConfigParseError
	ConfigPathNotExist
	ConfigEntrySkipped
	ConfigLoadFailed
	ConfigWriteFailed
	ConfigValidationFailed
)

const (
	RegistryAlreadyExists = 1200 + iota
	RegistryNotFound
	RegistryOutOfMemory
)

const (
	RpcFailed = 1300 + iota
)

const (
	NotifyWatchFailed = 1400 + iota
	NotifyReaderDown
	NotifyEncodingFailed
	NotifyInvalidRequest
)

const (
	ResourceExhausted = 1500 + iota
	ResourceAllocFailed
)

const (
	LifecycleAlreadyRunning = 1600 + iota
	LifecycleShutdownFailed
	LifecyclePidFileError
)

const (
	CommandExecution = 1700 + iota
	CommandValidationFailed
	CommandTimeout
	CommandInvalidInput
	PermissionDenied
	OperationFailed
)

const (
	ServiceNotFound = 1800 + iota
	ServiceStartFailed
	ServiceStopFailed
	ServiceReloadFailed
)

type errorDefinition struct {
	domain  Domain
	message string
}

var errorDefinitions = map[ErrorCode]errorDefinition{
	LinkSendFailed:       {DomainLink, "failed to send message over kernel link"},
	LinkRecvFailed:       {DomainLink, "failed to receive message from kernel link"},
	LinkOversizedMessage: {DomainLink, "message exceeds MAX_PAYLOAD"},
	LinkClosed:           {DomainLink, "kernel link closed"},
	LinkBindFailed:       {DomainLink, "failed to bind kernel link socket"},

	ConfigNotFound:         {DomainConfig, "configuration file not found"},
	ConfigReadError:        {DomainConfig, "failed to read configuration file"},
	ConfigParseError:       {DomainConfig, "failed to parse configuration entry"},
	ConfigPathNotExist:     {DomainConfig, "share path does not exist"},
	ConfigEntrySkipped:     {DomainConfig, "entry skipped"},
	ConfigLoadFailed:       {DomainConfig, "failed to load configuration"},
	ConfigWriteFailed:      {DomainConfig, "failed to write configuration"},
	ConfigValidationFailed: {DomainConfig, "configuration validation failed"},

	RegistryAlreadyExists: {DomainRegistry, "pipe already exists for this client"},
	RegistryNotFound:      {DomainRegistry, "pipe or client not found"},
	RegistryOutOfMemory:   {DomainRegistry, "failed to allocate registry entry"},

	RpcFailed: {DomainRpc, "rpc collaborator returned an error"},

	NotifyWatchFailed:    {DomainNotify, "failed to register filesystem watch"},
	NotifyReaderDown:     {DomainNotify, "notify background reader is not running"},
	NotifyEncodingFailed: {DomainNotify, "failed to encode filename to utf16le"},
	NotifyInvalidRequest: {DomainNotify, "malformed inotify request payload"},

	ResourceExhausted:   {DomainResource, "resource exhausted"},
	ResourceAllocFailed: {DomainResource, "allocation failed"},

	LifecycleAlreadyRunning: {DomainLifecycle, "daemon instance already running"},
	LifecycleShutdownFailed: {DomainLifecycle, "shutdown hook failed"},
	LifecyclePidFileError:   {DomainLifecycle, "pid file error"},

	CommandExecution:        {DomainCommand, "command execution failed"},
	CommandValidationFailed: {DomainCommand, "command failed validation"},
	CommandTimeout:          {DomainCommand, "command timed out"},
	CommandInvalidInput:     {DomainCommand, "invalid command input"},
	PermissionDenied:        {DomainCommand, "permission denied"},
	OperationFailed:         {DomainCommand, "operation failed"},

	ServiceNotFound:     {DomainService, "service not found"},
	ServiceStartFailed:  {DomainService, "failed to start service"},
	ServiceStopFailed:   {DomainService, "failed to stop service"},
	ServiceReloadFailed: {DomainService, "failed to reload service"},
}
