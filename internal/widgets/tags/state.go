package tags

import (
	"net/url"
	"strconv"
)

// State is the page state of one tag list view. Filter follows every
// keystroke; DebouncedFilter is the value the list is actually queried with.
type State struct {
	Filter          string
	DebouncedFilter string
	Page            int
}

// Action is a state transition applied by Reduce.
type Action interface {
	apply(State) State
}

// FilterTyped records a keystroke in the search input.
type FilterTyped struct{ Text string }

// FilterSettled commits the debounced filter and returns to the first page.
type FilterSettled struct{ Text string }

// PageChanged moves to another page. Pages below 1 become 1.
type PageChanged struct{ Page int }

func (a FilterTyped) apply(s State) State {
	s.Filter = a.Text
	return s
}

func (a FilterSettled) apply(s State) State {
	s.DebouncedFilter = a.Text
	s.Page = 1
	return s
}

func (a PageChanged) apply(s State) State {
	s.Page = max(1, a.Page)
	return s
}

// Reduce returns the state after applying a.
func Reduce(s State, a Action) State {
	return a.apply(s)
}

// Query serializes the state into browser URL parameters.
func (s State) Query() url.Values {
	return url.Values{
		"page":  {strconv.Itoa(max(1, s.Page))},
		"title": {s.DebouncedFilter},
	}
}

// Encode returns Query as an encoded query string.
func (s State) Encode() string {
	return s.Query().Encode()
}

// StateFromURL builds the initial state from browser URL parameters. A
// missing, malformed or non-positive page becomes 1. The title is restored
// only when restoreFilter is set; otherwise the filter starts empty.
func StateFromURL(values url.Values, restoreFilter bool) State {
	st := State{Page: 1}
	if n, err := strconv.Atoi(values.Get("page")); err == nil && n > 1 {
		st.Page = n
	}
	if restoreFilter {
		st.Filter = values.Get("title")
		st.DebouncedFilter = st.Filter
	}
	return st
}
