package utils

// Paginate describes the page of a list returned by an endpoint.
type Paginate struct {
	StartPage    int `json:"start_page"`
	ItemsOnPage  int `json:"items_on_page"`
	ItemsPerPage int `json:"items_per_page,omitempty"`
	TotalResult  int `json:"total_result"`
}

// PaginateEndPoint cuts a list of total items into pages of count items and
// returns page startPage with its [start, end) bounds. A count <= 0 returns
// everything on one page, a page past the end is empty.
func PaginateEndPoint(total, count, startPage int) (paginate Paginate, start, end int) {
	if startPage < 0 {
		startPage = 0
	}
	if count <= 0 {
		return Paginate{StartPage: 0, ItemsOnPage: total, TotalResult: total}, 0, total
	}

	start = startPage * count
	if start > total {
		start = total
	}
	end = start + count
	if end > total {
		end = total
	}
	return Paginate{
		StartPage:    startPage,
		ItemsOnPage:  end - start,
		ItemsPerPage: count,
		TotalResult:  total,
	}, start, end
}
