// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package logging

import (
	"fmt"

	apperrors "airplan/cli/internal/errors"
)

var kindHints = map[apperrors.Kind]string{
	apperrors.NoProfilesConfigured: "add a server with `airplan profiles add`",
	apperrors.ProfileStore:         "check profiles.toml and that the OS keychain is unlocked",
	apperrors.AllProfilesFailed:    "check `airplan ping`",
}

// PresentError formats an error for the terminal. Credentials are masked and
// errors of a known kind get a next step appended.
func PresentError(context string, err error) string {
	if err == nil {
		return ""
	}
	msg := fmt.Sprintf("%s: %s", context, Mask(err.Error()))
	if hint, ok := kindHints[apperrors.KindOf(err)]; ok {
		msg += "\n  hint: " + hint
	}
	return msg
}
