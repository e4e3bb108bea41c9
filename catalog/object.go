// Package catalog holds the archive object model, the image-list rules that
// keep exactly one primary image, and the Service that keeps the in-memory
// object list, the local cache and the remote store in step.
package catalog

import (
	"encoding/json"
	"fmt"
	"slices"
)

// Columns is the persisted column order of an object row. The first column is
// always the id.
var Columns = []string{
	"id",
	"title",
	"aboutText",
	"images",
	"from",
	"designer",
	"maker",
	"makerRole",
	"portfolioTitle",
	"mediumMaterials",
	"measurements",
	"keywords",
	"collection",
	"objectType",
	"objectNumber",
	"accessionDate",
	"controllingInstitution",
	"collectionType",
	"classification",
	"physicalCharacteristics",
	"cataloguedDate",
	"cataloguer",
	"relatedAcquisitionRecord",
	"acquisitionNotes",
	"parts",
	"createdAt",
	"updatedAt",
}

// ArrayColumns are transported as JSON-encoded strings inside a single cell.
var ArrayColumns = map[string]bool{
	"images":   true,
	"keywords": true,
	"parts":    true,
}

// Object is a catalogued physical item.
type Object struct {
	ID                       string   `json:"id"`
	Title                    string   `json:"title"`
	AboutText                string   `json:"aboutText"`
	Images                   []Image  `json:"images"`
	From                     string   `json:"from"`
	Designer                 string   `json:"designer"`
	Maker                    string   `json:"maker"`
	MakerRole                string   `json:"makerRole"`
	PortfolioTitle           string   `json:"portfolioTitle"`
	MediumMaterials          string   `json:"mediumMaterials"`
	Measurements             string   `json:"measurements"`
	Keywords                 []string `json:"keywords"`
	Collection               string   `json:"collection"`
	ObjectType               string   `json:"objectType"`
	ObjectNumber             string   `json:"objectNumber"`
	AccessionDate            string   `json:"accessionDate"`
	ControllingInstitution   string   `json:"controllingInstitution"`
	CollectionType           string   `json:"collectionType"`
	Classification           string   `json:"classification"`
	PhysicalCharacteristics  string   `json:"physicalCharacteristics"`
	CataloguedDate           string   `json:"cataloguedDate"`
	Cataloguer               string   `json:"cataloguer"`
	RelatedAcquisitionRecord string   `json:"relatedAcquisitionRecord"`
	AcquisitionNotes         string   `json:"acquisitionNotes"`
	Parts                    []string `json:"parts"`
	CreatedAt                string   `json:"createdAt"`
	UpdatedAt                string   `json:"updatedAt"`
}

// Clone returns a copy of o that shares no slices with it.
func (o Object) Clone() Object {
	c := o
	c.Images = slices.Clone(o.Images)
	c.Keywords = slices.Clone(o.Keywords)
	c.Parts = slices.Clone(o.Parts)
	return c
}

// TextFields returns the scalar string columns of o keyed by column name.
// Array columns are not included.
func (o Object) TextFields() map[string]string {
	return map[string]string{
		"id":                       o.ID,
		"title":                    o.Title,
		"aboutText":                o.AboutText,
		"from":                     o.From,
		"designer":                 o.Designer,
		"maker":                    o.Maker,
		"makerRole":                o.MakerRole,
		"portfolioTitle":           o.PortfolioTitle,
		"mediumMaterials":          o.MediumMaterials,
		"measurements":             o.Measurements,
		"collection":               o.Collection,
		"objectType":               o.ObjectType,
		"objectNumber":             o.ObjectNumber,
		"accessionDate":            o.AccessionDate,
		"controllingInstitution":   o.ControllingInstitution,
		"collectionType":           o.CollectionType,
		"classification":           o.Classification,
		"physicalCharacteristics":  o.PhysicalCharacteristics,
		"cataloguedDate":           o.CataloguedDate,
		"cataloguer":               o.Cataloguer,
		"relatedAcquisitionRecord": o.RelatedAcquisitionRecord,
		"acquisitionNotes":         o.AcquisitionNotes,
		"createdAt":                o.CreatedAt,
		"updatedAt":                o.UpdatedAt,
	}
}

// SetTextField assigns a scalar column by name. Unknown names and array
// columns are ignored and reported as false.
func (o *Object) SetTextField(name, value string) bool {
	switch name {
	case "id":
		o.ID = value
	case "title":
		o.Title = value
	case "aboutText":
		o.AboutText = value
	case "from":
		o.From = value
	case "designer":
		o.Designer = value
	case "maker":
		o.Maker = value
	case "makerRole":
		o.MakerRole = value
	case "portfolioTitle":
		o.PortfolioTitle = value
	case "mediumMaterials":
		o.MediumMaterials = value
	case "measurements":
		o.Measurements = value
	case "collection":
		o.Collection = value
	case "objectType":
		o.ObjectType = value
	case "objectNumber":
		o.ObjectNumber = value
	case "accessionDate":
		o.AccessionDate = value
	case "controllingInstitution":
		o.ControllingInstitution = value
	case "collectionType":
		o.CollectionType = value
	case "classification":
		o.Classification = value
	case "physicalCharacteristics":
		o.PhysicalCharacteristics = value
	case "cataloguedDate":
		o.CataloguedDate = value
	case "cataloguer":
		o.Cataloguer = value
	case "relatedAcquisitionRecord":
		o.RelatedAcquisitionRecord = value
	case "acquisitionNotes":
		o.AcquisitionNotes = value
	case "createdAt":
		o.CreatedAt = value
	case "updatedAt":
		o.UpdatedAt = value
	default:
		return false
	}
	return true
}

// ImageState tells whether an image's bytes live in the remote store or only
// on this side as an embedded data URI.
type ImageState int

const (
	// ImageRemote images are persisted by the remote store.
	ImageRemote ImageState = iota
	// ImageLocal images are embedded and have not been accepted remotely yet.
	ImageLocal
)

func (s ImageState) String() string {
	switch s {
	case ImageRemote:
		return "remote"
	case ImageLocal:
		return "local"
	}
	return fmt.Sprintf("ImageState(%d)", int(s))
}

// Image is one picture of an object.
type Image struct {
	URL     string
	Caption string
	Primary bool
	State   ImageState
}

// IsLocal reports whether the image is still pending promotion to the remote store.
func (i Image) IsLocal() bool {
	switch i.State {
	case ImageLocal:
		return true
	case ImageRemote:
		return false
	}
	return false
}

type imageJSON struct {
	URL       string `json:"url"`
	Caption   string `json:"caption"`
	IsPrimary bool   `json:"isPrimary"`
	IsLocal   bool   `json:"isLocal,omitempty"`
}

// MarshalJSON keeps the wire shape {url, caption, isPrimary, isLocal}.
func (i Image) MarshalJSON() ([]byte, error) {
	return json.Marshal(imageJSON{
		URL:       i.URL,
		Caption:   i.Caption,
		IsPrimary: i.Primary,
		IsLocal:   i.IsLocal(),
	})
}

func (i *Image) UnmarshalJSON(b []byte) error {
	var v imageJSON
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	i.URL = v.URL
	i.Caption = v.Caption
	i.Primary = v.IsPrimary
	i.State = ImageRemote
	if v.IsLocal {
		i.State = ImageLocal
	}
	return nil
}
