package service

import "github.com/smallbiznis/smartinvoice/pkg/db/pagination"

func paginationOf(token string, size int) pagination.Pagination {
	return pagination.Pagination{PageToken: token, PageSize: size}
}
