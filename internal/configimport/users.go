// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

// Package configimport performs the one-shot import of the password
// database and the share configuration file into the kernel module at
// daemon startup.
package configimport

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/user"
	"strconv"
	"strings"

	"github.com/stratastor/logger"
	"github.com/stratastor/smbd-companion/internal/wire"
	"github.com/stratastor/smbd-companion/pkg/errors"
)

const maxWireID = 65535

// Caller is the synchronous request/response half of the Kernel Link,
// satisfied by *kernellink.Link.Call.
type Caller interface {
	Call(hdr wire.Header, payload []byte) (wire.Message, error)
}

// Opener opens one configuration input for reading. OSOpen is the
// default; a sudo-backed privilege.FileOperations adapter is
// substituted when the daemon runs unprivileged.
type Opener func(path string) (io.ReadCloser, error)

// OSOpen is the plain os.Open Opener.
func OSOpen(path string) (io.ReadCloser, error) {
	return os.Open(path)
}

// ImportUsers streams dbPath's entries to the kernel module one at a
// time, each as a CONFIG_USER/CONFIG_USER_RSP round trip. It returns an
// error only when the file itself cannot be opened or read; a rejected
// or unresolvable individual entry is logged and does not abort the
// import.
func ImportUsers(link Caller, open Opener, dbPath string, log logger.Logger) error {
	f, err := open(dbPath)
	if err != nil {
		return errors.Wrap(err, errors.ConfigNotFound).WithMetadata("path", dbPath)
	}
	defer f.Close()

	sent, skipped := 0, 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, ";") {
			continue
		}

		entry, ok := suffixWithIDs(line, log)
		if !ok {
			skipped++
			continue
		}

		hdr := wire.Header{Type: wire.ConfigUser, BufLen: uint32(len(entry))}
		rsp, err := link.Call(hdr, []byte(entry))
		if err != nil {
			log.Warn("CONFIG_USER round trip failed", "err", err)
			continue
		}
		if rsp.Header.Error != 0 {
			log.Warn("kernel rejected CONFIG_USER entry", "error", rsp.Header.Error)
			continue
		}
		sent++
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrap(err, errors.ConfigReadError).WithMetadata("path", dbPath)
	}

	log.Info("password database import complete", "sent", sent, "skipped", skipped)
	return nil
}

// accountField is everything up to the first field separator in a
// password-db entry, i.e. the account name.
func accountField(line string) string {
	line = strings.TrimLeft(line, " \t")
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return ""
	}
	name := fields[0]
	if i := strings.IndexByte(name, ':'); i >= 0 {
		name = name[:i]
	}
	return name
}

// suffixWithIDs resolves line's account name to a uid/gid pair via the
// host account database and appends ":<uid>:<gid>\n" to the entry when
// both ids fit in 16 bits. An unresolvable account is returned
// unsuffixed (ok=true); an account whose ids exceed 65535 is skipped
// entirely (ok=false) with an error logged.
func suffixWithIDs(line string, log logger.Logger) (string, bool) {
	name := accountField(line)
	if name == "" {
		return line, true
	}

	u, err := user.Lookup(name)
	if err != nil {
		return line, true
	}

	uid, err1 := strconv.Atoi(u.Uid)
	gid, err2 := strconv.Atoi(u.Gid)
	if err1 != nil || err2 != nil {
		return line, true
	}
	if uid > maxWireID || gid > maxWireID {
		log.Error("account uid/gid exceeds wire limit, skipping entry", "account", name, "uid", uid, "gid", gid)
		return "", false
	}

	return fmt.Sprintf("%s:%d:%d\n", line, uid, gid), true
}
