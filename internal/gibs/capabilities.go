package gibs

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
)

// WMS capabilities structures. Tags carry no namespace so both the 1.1.1
// and the namespaced 1.3.0 documents decode.
type capabilitiesDoc struct {
	Version    string   `xml:"version,attr"`
	Capability struct {
		Layer capsLayer `xml:"Layer"`
	} `xml:"Capability"`
}

type capsLayer struct {
	Name       string          `xml:"Name"`
	Title      string          `xml:"Title"`
	Abstract   string          `xml:"Abstract"`
	Dimensions []capsDimension `xml:"Dimension"`
	Extents    []capsDimension `xml:"Extent"` // WMS 1.1.1 puts the values here
	Layers     []capsLayer     `xml:"Layer"`
}

type capsDimension struct {
	Name    string `xml:"name,attr"`
	Default string `xml:"default,attr"`
	Values  string `xml:",chardata"`
}

// LayerInfo represents a named WMS layer
type LayerInfo struct {
	Name        string `json:"name"`
	Title       string `json:"title"`
	Description string `json:"description"`
	HasTime     bool   `json:"hasTime"`
	DefaultTime string `json:"defaultTime,omitempty"`
	TimeExtent  string `json:"timeExtent,omitempty"`
}

// CapabilitiesURL returns the GetCapabilities URL for the client's endpoint
func (c *Client) CapabilitiesURL() string {
	sep := "?"
	if strings.Contains(c.baseURL, "?") {
		sep = "&"
	}
	return c.baseURL + sep + "SERVICE=WMS&REQUEST=GetCapabilities&VERSION=1.1.1"
}

// FetchCapabilities fetches and parses the WMS capabilities document
func (c *Client) FetchCapabilities(ctx context.Context) ([]LayerInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.CapabilitiesURL(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch capabilities: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch capabilities: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return ParseCapabilities(data)
}

// ParseCapabilities extracts every named layer, sorted by name
func ParseCapabilities(data []byte) ([]LayerInfo, error) {
	var doc capabilitiesDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse XML: %w", err)
	}

	var layers []LayerInfo
	collectLayers(doc.Capability.Layer, &layers)
	if len(layers) == 0 {
		return nil, fmt.Errorf("no layers found in capabilities")
	}

	sort.Slice(layers, func(i, j int) bool { return layers[i].Name < layers[j].Name })
	return layers, nil
}

func collectLayers(l capsLayer, out *[]LayerInfo) {
	if l.Name != "" {
		info := LayerInfo{
			Name:        l.Name,
			Title:       strings.TrimSpace(l.Title),
			Description: strings.TrimSpace(l.Abstract),
		}
		for _, d := range append(l.Dimensions, l.Extents...) {
			if !strings.EqualFold(d.Name, "time") {
				continue
			}
			info.HasTime = true
			if d.Default != "" {
				info.DefaultTime = d.Default
			}
			if v := strings.TrimSpace(d.Values); v != "" {
				info.TimeExtent = v
			}
		}
		*out = append(*out, info)
	}

	for _, child := range l.Layers {
		collectLayers(child, out)
	}
}
