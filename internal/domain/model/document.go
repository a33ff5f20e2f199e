package model

import "time"

// Document: запись реестра загруженных документов woreda.
// Реестр наполняется внешним конвейером загрузки, шлюз только читает.
type Document struct {
	ID              string
	ScopeID         string
	CategoryID      string
	SubcategoryCode string
	Year            int
	FileName        string
	ObjectKey       string
	ContentType     string
	UploadedBy      string
	CreatedAt       time.Time
}

// DocumentFilter: фильтр списка документов внутри одного scope.
type DocumentFilter struct {
	CategoryID *string
	Year       *int
	Limit      int
	Offset     int
}
