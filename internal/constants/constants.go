/*
 * Copyright 2024-2025 Raamsri Kumar <raam@tinkershack.in>
 * Copyright 2024-2025 The StrataSTOR Authors and Contributors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package constants

const (
	Version     = "v0.0.1"
	PIDFilePath = "/var/run/smbd-companion.pid"

	// config
	SystemConfigDir = "/etc/smbd-companion"
	UserConfigDir   = "~/.smbd-companion"
	ConfigFileName  = "smbd-companion.yml"
	StateFileName   = "smbd-companion_state.yml"

	// build-time defaults for the daemon's two configuration importer
	// inputs; overridable via -i/-c.
	DefaultUsersDBPath   = "/etc/smbd-companion/smbpasswd.db"
	DefaultShareConfPath = "/etc/samba/smb.conf"

	// MAX_PAYLOAD bounds every kernel link datagram payload.
	MaxPayload = 1024 * 64

	// PageSize bounds a single share-config framing buffer; a block
	// larger than this is flushed and the share header is re-emitted.
	PageSize = 4096
)

var (
	CommitSHA = "unknown"
	BuildTime = "unknown"
)
