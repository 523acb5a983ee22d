package common

import "time"

// FileUpload is the stored record of one uploaded document.
type FileUpload struct {
	ID            string     `json:"id"`
	Filename      string     `json:"filename"`
	OriginalName  string     `json:"originalName"`
	FileType      FileType   `json:"fileType"`
	FileSize      int64      `json:"fileSize"`
	FilePath      string     `json:"filePath"`
	Status        FileStatus `json:"status"`
	ExtractedText string     `json:"extractedText,omitempty"`
	SheetCount    int        `json:"sheetCount,omitempty"`
	PageCount     int        `json:"pageCount,omitempty"`
	UploadTime    time.Time  `json:"uploadTime"`
	ProcessedTime *time.Time `json:"processedTime,omitempty"`
	ErrorMessage  string     `json:"errorMessage,omitempty"`
	CreatedBy     string     `json:"createdBy"`
}

// FileUpdate is a partial update of a file record.
type FileUpdate struct {
	Status        *FileStatus
	ExtractedText *string
	SheetCount    *int
	PageCount     *int
	ProcessedTime *time.Time
	ErrorMessage  *string
}

// OntologyLibrary is a stored, reusable ontology that can steer extraction.
type OntologyLibrary struct {
	ID            string                `json:"id"`
	Name          string                `json:"name"`
	Version       string                `json:"version"`
	Domain        string                `json:"domain"`
	Description   string                `json:"description,omitempty"`
	IsActive      bool                  `json:"isActive"`
	IsDefault     bool                  `json:"isDefault"`
	EntityTypes   []LibraryEntityType   `json:"entityTypes"`
	RelationTypes []LibraryRelationType `json:"relationTypes"`
	CreatedBy     string                `json:"createdBy"`
	CreatedAt     time.Time             `json:"createdAt"`
	UpdatedAt     time.Time             `json:"updatedAt"`
}

type LibraryEntityType struct {
	Name        string        `json:"name" validate:"required"`
	DisplayName string        `json:"displayName"`
	Color       string        `json:"color"`
	Icon        string        `json:"icon"`
	Description string        `json:"description,omitempty"`
	Properties  []PropertyDef `json:"properties,omitempty"`
}

type PropertyDef struct {
	Name         string   `json:"name" validate:"required"`
	DisplayName  string   `json:"displayName,omitempty"`
	DataType     string   `json:"dataType,omitempty"`
	Required     bool     `json:"required"`
	Searchable   bool     `json:"searchable"`
	IsIdentifier bool     `json:"isIdentifier"`
	EnumValues   []string `json:"enumValues,omitempty"`
	Description  string   `json:"description,omitempty"`
}

type LibraryRelationType struct {
	Name        string   `json:"name" validate:"required"`
	DisplayName string   `json:"displayName"`
	SourceTypes []string `json:"sourceTypes"`
	TargetTypes []string `json:"targetTypes"`
	Description string   `json:"description,omitempty"`
	IsDirected  bool     `json:"isDirected"`
}

// ApplyDefaults fills the presentation defaults of a new library record.
func (o *OntologyLibrary) ApplyDefaults() {
	if o.Version == "" {
		o.Version = "1.0"
	}
	if o.Domain == "" {
		o.Domain = "safety_training"
	}
	for i := range o.EntityTypes {
		if o.EntityTypes[i].Color == "" {
			o.EntityTypes[i].Color = "#1890ff"
		}
		if o.EntityTypes[i].Icon == "" {
			o.EntityTypes[i].Icon = "node"
		}
		if o.EntityTypes[i].DisplayName == "" {
			o.EntityTypes[i].DisplayName = o.EntityTypes[i].Name
		}
	}
	for i := range o.RelationTypes {
		if o.RelationTypes[i].DisplayName == "" {
			o.RelationTypes[i].DisplayName = o.RelationTypes[i].Name
		}
	}
}

// EntityTypeNames lists the entity type names of the library.
func (o *OntologyLibrary) EntityTypeNames() []string {
	names := make([]string, 0, len(o.EntityTypes))
	for _, t := range o.EntityTypes {
		names = append(names, t.Name)
	}
	return names
}

// RelationTypeNames lists the relation type names of the library.
func (o *OntologyLibrary) RelationTypeNames() []string {
	names := make([]string, 0, len(o.RelationTypes))
	for _, t := range o.RelationTypes {
		names = append(names, t.Name)
	}
	return names
}
