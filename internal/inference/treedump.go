package inference

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// treeDump is the on-disk artifact:
//
//	{
//	  "objective": "binary:logistic",
//	  "base_score": 0.5,
//	  "num_feature": 8,
//	  "feature_names": ["DepHour", ...],   // optional
//	  "trees": [ <booster.get_dump(dump_format="json") entries> ]
//	}
//
// Trees may be given as objects or as the JSON strings get_dump returns.
// base_score is in output space (a probability for logistic objectives).
type treeDump struct {
	Objective    string            `json:"objective"`
	BaseScore    *float64          `json:"base_score"`
	NumFeature   int               `json:"num_feature"`
	FeatureNames []string          `json:"feature_names"`
	Trees        []json.RawMessage `json:"trees"`
}

type dumpNode struct {
	NodeID         int        `json:"nodeid"`
	Split          string     `json:"split"`
	SplitCondition float64    `json:"split_condition"`
	Yes            int        `json:"yes"`
	No             int        `json:"no"`
	Missing        *int       `json:"missing"`
	Leaf           *float64   `json:"leaf"`
	Children       []dumpNode `json:"children"`
}

// node is a flattened tree node. Leaves have feature == -1. XGBoost keeps
// split conditions and feature values as float32.
type node struct {
	feature   int
	threshold float32
	yes, no   int
	missing   int
	value     float64
}

type tree []node

// TreeEnsemble evaluates an XGBoost JSON dump.
type TreeEnsemble struct {
	trees      []tree
	baseMargin float64
	nFeatures  int
	logistic   bool
}

// LoadTreeDump parses the JSON tree-dump artifact.
func LoadTreeDump(r io.Reader) (*TreeEnsemble, error) {
	var d treeDump
	if err := json.NewDecoder(r).Decode(&d); err != nil {
		return nil, fmt.Errorf("tree dump: %w", err)
	}
	if len(d.Trees) == 0 {
		return nil, errors.New("tree dump: no trees")
	}

	e := &TreeEnsemble{nFeatures: d.NumFeature}
	if e.nFeatures == 0 {
		e.nFeatures = len(d.FeatureNames)
	}

	base := 0.5
	if d.BaseScore != nil {
		base = *d.BaseScore
	}

	switch d.Objective {
	case "binary:logistic", "reg:logistic":
		if base <= 0 || base >= 1 {
			return nil, fmt.Errorf("tree dump: base_score %v outside (0,1) for %s", base, d.Objective)
		}
		e.logistic = true
		e.baseMargin = math.Log(base / (1 - base))
	case "binary:logitraw", "reg:squarederror", "reg:linear", "reg:absoluteerror", "reg:pseudohubererror":
		e.baseMargin = base
	default:
		return nil, fmt.Errorf("tree dump: unsupported objective %q", d.Objective)
	}

	names := make(map[string]int, len(d.FeatureNames))
	for i, n := range d.FeatureNames {
		names[n] = i
	}

	for i, raw := range d.Trees {
		root, err := decodeTree(raw)
		if err != nil {
			return nil, fmt.Errorf("tree dump: tree %d: %w", i, err)
		}
		t, err := flatten(root, names)
		if err != nil {
			return nil, fmt.Errorf("tree dump: tree %d: %w", i, err)
		}
		for _, n := range t {
			if n.feature >= e.nFeatures && e.nFeatures > 0 {
				return nil, fmt.Errorf("tree dump: tree %d splits on feature %d of %d", i, n.feature, e.nFeatures)
			}
		}
		e.trees = append(e.trees, t)
	}

	return e, nil
}

// decodeTree accepts a tree object or a string holding one.
func decodeTree(raw json.RawMessage) (*dumpNode, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		raw = json.RawMessage(s)
	}
	var root dumpNode
	if err := json.Unmarshal(raw, &root); err != nil {
		return nil, err
	}
	return &root, nil
}

// flatten indexes nodes by nodeid so evaluation is a slice walk.
func flatten(root *dumpNode, names map[string]int) (tree, error) {
	byID := map[int]*dumpNode{}
	var walk func(n *dumpNode) error
	walk = func(n *dumpNode) error {
		if _, dup := byID[n.NodeID]; dup {
			return fmt.Errorf("duplicate nodeid %d", n.NodeID)
		}
		byID[n.NodeID] = n
		for i := range n.Children {
			if err := walk(&n.Children[i]); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(root); err != nil {
		return nil, err
	}

	t := make(tree, len(byID))
	for id, n := range byID {
		if id < 0 || id >= len(t) {
			return nil, fmt.Errorf("nodeid %d out of range", id)
		}
		if n.Leaf != nil {
			t[id] = node{feature: -1, value: *n.Leaf}
			continue
		}

		f, err := featureIndex(n.Split, names)
		if err != nil {
			return nil, fmt.Errorf("node %d: %w", id, err)
		}
		missing := n.Yes
		if n.Missing != nil {
			missing = *n.Missing
		}
		for _, child := range []int{n.Yes, n.No, missing} {
			if _, ok := byID[child]; !ok || child == id {
				return nil, fmt.Errorf("node %d: bad child %d", id, child)
			}
		}
		t[id] = node{feature: f, threshold: float32(n.SplitCondition), yes: n.Yes, no: n.No, missing: missing}
	}
	return t, nil
}

// featureIndex resolves "f3" style or named splits.
func featureIndex(split string, names map[string]int) (int, error) {
	if i, ok := names[split]; ok {
		return i, nil
	}
	if rest, ok := strings.CutPrefix(split, "f"); ok {
		if i, err := strconv.Atoi(rest); err == nil && i >= 0 {
			return i, nil
		}
	}
	return 0, fmt.Errorf("unknown split feature %q", split)
}

func (t tree) eval(x []float64) float64 {
	i := 0
	// a well-formed tree reaches a leaf in at most len(t) steps
	for steps := 0; steps <= len(t); steps++ {
		n := t[i]
		if n.feature < 0 {
			return n.value
		}
		v := x[n.feature]
		switch {
		case math.IsNaN(v):
			i = n.missing
		case float32(v) < n.threshold:
			i = n.yes
		default:
			i = n.no
		}
	}
	return math.NaN()
}

// Predict sums the tree margins and applies the objective's link.
func (e *TreeEnsemble) Predict(features []float64) (float64, error) {
	if e.nFeatures > 0 && len(features) != e.nFeatures {
		return 0, fmt.Errorf("expected %d features, got %d", e.nFeatures, len(features))
	}
	margin := e.baseMargin
	for _, t := range e.trees {
		margin += t.eval(features)
	}
	if e.logistic {
		return 1 / (1 + math.Exp(-margin)), nil
	}
	return margin, nil
}

func (e *TreeEnsemble) NFeatures() int {
	return e.nFeatures
}
