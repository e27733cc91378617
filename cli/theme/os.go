// Copyright (c) Mondoo, Inc.
// SPDX-License-Identifier: BUSL-1.1

package theme

import "strings"

var DefaultTheme = OperatingSystemTheme

const logo = `     _            _             _ _       _
  __| | ___   ___| | _____ _ __| (_)_ __ | |_
 / _` + "`" + ` |/ _ \ / __| |/ / _ \ '__| | | '_ \| __|
| (_| | (_) | (__|   <  __/ |  | | | | | | |_
 \__,_|\___/ \___|_|\_\___|_|  |_|_|_| |_|\__|`

func list(items ...string) string {
	if len(items) == 0 {
		return ""
	}
	var w strings.Builder
	for i := range items {
		w.WriteString("- " + items[i] + "\n")
	}
	res := w.String()
	return res[0 : len(res)-1]
}
