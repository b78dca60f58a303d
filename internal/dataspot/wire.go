package dataspot

import "github.com/opendatabs/metasync/pkg/catalog"

// wireAsset is the service's asset representation. Label and description
// always travel, even empty: a PATCH must be able to clear a description
// that was removed at the source.
type wireAsset struct {
	ID               string            `json:"id,omitempty"`
	Type             string            `json:"_type"`
	Label            string            `json:"label"`
	Description      string            `json:"description"`
	Status           string            `json:"status,omitempty"`
	Stereotype       string            `json:"stereotype,omitempty"`
	InCollection     string            `json:"inCollection,omitempty"`
	CustomProperties map[string]string `json:"customProperties,omitempty"`
}

func (w *wireAsset) toAsset() *catalog.Asset {
	return &catalog.Asset{
		ID:          catalog.Ref(w.ID),
		Type:        catalog.Type(w.Type),
		Label:       w.Label,
		Description: w.Description,
		Status:      catalog.Status(w.Status),
		Stereotype:  w.Stereotype,
		ParentPath:  w.InCollection,
		Properties:  w.CustomProperties,
	}
}

func fromPayload(p catalog.Payload) *wireAsset {
	return &wireAsset{
		Type:             string(p.Type),
		Label:            p.Label,
		Description:      p.Description,
		Status:           string(p.Status),
		Stereotype:       p.Stereotype,
		InCollection:     p.ParentPath,
		CustomProperties: p.Properties,
	}
}

// wireChild is the service's attribute representation. The technical name
// travels as the label; display fields live in the properties map.
type wireChild struct {
	ID         string            `json:"id,omitempty"`
	Label      string            `json:"label"`
	Properties map[string]string `json:"properties,omitempty"`
}

func (w *wireChild) toChild() catalog.Child {
	return catalog.Child{
		ID:     catalog.Ref(w.ID),
		Code:   w.Label,
		Fields: w.Properties,
	}
}

func fromChild(c catalog.Child) *wireChild {
	return &wireChild{
		Label:      c.Code,
		Properties: c.Fields,
	}
}
