// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package httpclient

import (
	"net/http"
	"strconv"
	"time"
)

// ParseRetryAfterHeader extracts the standard HTTP Retry-After header,
// in either delta-seconds or HTTP-date form, the only rate-limit signal
// the spec requires honoring for dictionary provider APIs (§4.5).
func ParseRetryAfterHeader(headers http.Header) RateLimitInfo {
	info := RateLimitInfo{}

	raw := headers.Get("Retry-After")
	if raw == "" {
		return info
	}

	if seconds, err := strconv.Atoi(raw); err == nil {
		info.RetryAfter = time.Duration(seconds) * time.Second
		return info
	}

	if when, err := http.ParseTime(raw); err == nil {
		info.RetryAfter = time.Until(when)
	}

	return info
}
