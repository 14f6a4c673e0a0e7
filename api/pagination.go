// Copyright 2024 Blink Labs Software
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

package api

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/blinklabs-io/desci/database/plugin/metadata"
)

const (
	DefaultPaginationCount = metadata.DefaultPageSize
	MaxPaginationCount     = metadata.MaxPageSize
	DefaultPaginationPage  = 1
)

var ErrInvalidPaginationParameters = errors.New(
	"invalid pagination parameters",
)

// ParsePagination parses the count and page query parameters and
// applies defaults and bounds clamping.
func ParsePagination(c *gin.Context) (metadata.Pagination, error) {
	params := metadata.Pagination{
		Count: DefaultPaginationCount,
		Page:  DefaultPaginationPage,
	}
	if countParam := c.Query("count"); countParam != "" {
		count, err := strconv.Atoi(countParam)
		if err != nil {
			return metadata.Pagination{}, ErrInvalidPaginationParameters
		}
		params.Count = count
	}
	if pageParam := c.Query("page"); pageParam != "" {
		page, err := strconv.Atoi(pageParam)
		if err != nil {
			return metadata.Pagination{}, ErrInvalidPaginationParameters
		}
		params.Page = page
	}
	// Bounds clamping
	params.Count = min(max(params.Count, 1), MaxPaginationCount)
	params.Page = max(params.Page, 1)
	return params, nil
}
