package item

type Item struct {
	ID          int     `json:"id"`
	Name        string  `json:"name"`
	Description *string `json:"description"`
	Price       float64 `json:"price"`
	Size        *string `json:"size"`
	CategoryID  string  `json:"categoryId"`
	ConditionID string  `json:"conditionId"`
	ImagePath   string  `json:"image_path"`
	AuthorID    int     `json:"author_id"`
}

type CreateRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
	Price       float64 `json:"price"`
	Size        *string `json:"size"`
	CategoryID  string  `json:"categoryId"`
	ConditionID string  `json:"conditionId"`
	ImagePath   string  `json:"image_path"`
	AuthorID    int     `json:"author_id"`
	VKey        string  `json:"vKey"`
}

type UpdateRequest struct {
	ItemID      int     `json:"item_id"`
	AuthorID    int     `json:"author_id"`
	VKey        string  `json:"vKey"`
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Price       *float64 `json:"price"`
	Size        *string `json:"size"`
	CategoryID  *string `json:"categoryId"`
	ConditionID *string `json:"conditionId"`
	ImagePath   *string `json:"image_path"`
}

type DeleteRequest struct {
	ItemID   int    `json:"item_id"`
	AuthorID int    `json:"author_id"`
	VKey     string `json:"vKey"`
}

type ReportRequest struct {
	ItemID int    `json:"item_id"`
	Reason string `json:"reason"`
}
