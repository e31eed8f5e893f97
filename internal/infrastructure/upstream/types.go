package upstream

// primaryResponse is the envelope of the primary search API
type primaryResponse struct {
	Items []primaryItem `json:"items"`
}

type primaryItem struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Price      interface{} `json:"price"`
	Thumbnails []string    `json:"thumbnails"`
	Status     string      `json:"status"`
}

// secondaryResponse is the envelope of the on-sale search API
type secondaryResponse struct {
	Result string `json:"result"`
	Data   struct {
		Items []secondaryItem `json:"items"`
	} `json:"data"`
}

type secondaryItem struct {
	ID      string      `json:"id"`
	Name    string      `json:"name"`
	Price   interface{} `json:"price"`
	Images  []string    `json:"images"`
	ItemURL string      `json:"item_url"`
}
