package solaredge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/antzucaro/matchr"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type EquipmentKind int

const (
	KindUnknown EquipmentKind = iota
	KindInverter
	KindString
	KindModule
	KindMeter
)

func (k EquipmentKind) String() string {
	switch k {
	case KindInverter:
		return "inverter"
	case KindString:
		return "string"
	case KindModule:
		return "module"
	case KindMeter:
		return "meter"
	}
	return "unknown"
}

type Equipment struct {
	Id            int64  `json:"id"`
	SerialNumber  string `json:"serialNumber"`
	Name          string `json:"name"`
	DisplayName   string `json:"displayName"`
	RelativeOrder int    `json:"relativeOrder"`
	Type          string `json:"type"`

	// 0 for nodes directly under the site root
	ParentId int64 `json:"-"`
}

func (e Equipment) Kind() EquipmentKind {
	switch e.Type {
	case "INVERTER":
		return KindInverter
	case "STRING":
		return KindString
	case "PANEL", "MODULE":
		return KindModule
	case "METER":
		return KindMeter
	}
	return KindUnknown
}

type logicalNode struct {
	Data     Equipment     `json:"data"`
	Children []logicalNode `json:"children"`
}

type logicalLayout struct {
	LogicalTree struct {
		Children []logicalNode `json:"children"`
	} `json:"logicalTree"`
}

func flattenLogicalTree(node logicalNode, parentId int64, out map[int64]Equipment) {
	equip := node.Data
	equip.ParentId = parentId
	out[equip.Id] = equip
	for _, child := range node.Children {
		flattenLogicalTree(child, equip.Id, out)
	}
}

// Equipment returns the site's logical layout flattened into a map
// keyed by equipment id. The layout is cached until the next real
// login since it only changes when the installer reconfigures the
// site.
func (c *Client) Equipment(ctx context.Context) (map[int64]Equipment, error) {
	ctx, span := tracer.Start(ctx, "client:Equipment")
	defer span.End()

	err := c.Login(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.equipment != nil {
		slog.DebugContext(ctx, "using cached equipment", "site_id", c.SiteId, "count", len(c.equipment))
		return c.equipment, nil
	}

	res, err := c.Http.R().
		SetContext(ctx).
		Get(fmt.Sprintf("/solaredge-apigw/api/sites/%s/layout/logical", c.SiteId))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch logical layout")
		return nil, err
	}
	if res.IsError() {
		err := fmt.Errorf("logical layout returned status %d", res.StatusCode())
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	var layout logicalLayout
	err = json.Unmarshal(res.Body(), &layout)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to unmarshal logical layout")
		return nil, err
	}

	equipment := map[int64]Equipment{}
	for _, topLevelChild := range layout.LogicalTree.Children {
		flattenLogicalTree(topLevelChild, 0, equipment)
	}

	span.SetAttributes(attribute.KeyValue{
		Key:   "equipment_count",
		Value: attribute.IntValue(len(equipment)),
	})
	slog.DebugContext(ctx, "fetched equipment", "site_id", c.SiteId, "count", len(equipment))

	c.equipment = equipment
	return equipment, nil
}

// FindEquipment resolves a human-entered name to the closest
// matching equipment by display name.
func (c *Client) FindEquipment(ctx context.Context, query string) (Equipment, float64, error) {
	equipment, err := c.Equipment(ctx)
	if err != nil {
		return Equipment{}, 0, err
	}

	var best Equipment
	bestSimilarity := float64(0)
	for _, equip := range equipment {
		name := equip.DisplayName
		if name == "" {
			name = equip.Name
		}
		similarity := matchr.JaroWinkler(query, name, false)
		if similarity > bestSimilarity {
			bestSimilarity = similarity
			best = equip
		}
	}
	if bestSimilarity == 0 {
		return Equipment{}, 0, fmt.Errorf("no equipment matched %q", query)
	}
	return best, bestSimilarity, nil
}
