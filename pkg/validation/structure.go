// Package validation decides whether an automation graph is structurally legal, independent of device state.
package validation

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dukex/enviroflow/pkg/models"
)

// StructureResult is the outcome of ValidateStructure. Warnings never affect Valid.
type StructureResult struct {
	Valid    bool           `json:"valid"`
	Errors   []models.Issue `json:"errors"`
	Warnings []models.Issue `json:"warnings"`
}

// ValidateStructure checks trigger/action presence, edge references, acyclicity, and
// duplicate device targets. It reports every problem in one pass.
func ValidateStructure(nodes []*models.Node, edges []*models.Edge) StructureResult {
	result := StructureResult{
		Errors:   make([]models.Issue, 0),
		Warnings: make([]models.Issue, 0),
	}

	checkEntryAndEffects(nodes, &result)

	validEdges := checkEdgeReferences(nodes, edges, &result)

	if hasCycle(nodes, validEdges) {
		result.Errors = append(result.Errors, models.Issue{
			Severity: models.SeverityError,
			Type:     models.IssueCycleDetected,
			Message:  "Workflow contains a cycle; automations must not loop back on themselves",
		})
	}

	checkDuplicateTargets(nodes, &result)

	result.Valid = len(result.Errors) == 0

	return result
}

// ValidateGraph is ValidateStructure over a WorkflowGraph.
func ValidateGraph(graph models.WorkflowGraph) StructureResult {
	return ValidateStructure(graph.Nodes, graph.Edges)
}

func checkEntryAndEffects(nodes []*models.Node, result *StructureResult) {
	var (
		triggers []*models.Node
		effects  int
	)

	for _, node := range nodes {
		if node == nil {
			continue
		}

		if node.Kind == models.NodeKindTrigger {
			triggers = append(triggers, node)
		}

		if node.Kind.IsEffect() {
			effects++
		}
	}

	switch {
	case len(triggers) == 0:
		result.Errors = append(result.Errors, models.Issue{
			Severity: models.SeverityError,
			Type:     models.IssueMissingTrigger,
			Message:  "Workflow must have a trigger node",
		})
	case len(triggers) > 1:
		// Only the first trigger is used at execution time. The closed issue set has no
		// "too many triggers" type, so this reuses missing_trigger as a warning.
		first := triggers[0]
		result.Warnings = append(result.Warnings, models.Issue{
			NodeID:    first.ID,
			NodeLabel: first.Label(),
			Severity:  models.SeverityWarning,
			Type:      models.IssueMissingTrigger,
			Message: fmt.Sprintf("Workflow has %d trigger nodes; only %q will be used",
				len(triggers), first.Label()),
			RelatedNodeIDs: nodeIDs(triggers),
		})
	}

	if effects == 0 {
		result.Errors = append(result.Errors, models.Issue{
			Severity: models.SeverityError,
			Type:     models.IssueMissingAction,
			Message:  "Workflow must have at least one action, dimmer, or notification node",
		})
	}
}

func checkEdgeReferences(nodes []*models.Node, edges []*models.Edge, result *StructureResult) []*models.Edge {
	known := make(map[string]bool, len(nodes))
	for _, node := range nodes {
		if node != nil {
			known[node.ID] = true
		}
	}

	valid := make([]*models.Edge, 0, len(edges))

	for _, edge := range edges {
		if edge == nil {
			continue
		}

		var missing []string
		if !known[edge.Source] {
			missing = append(missing, fmt.Sprintf("source %q", edge.Source))
		}

		if !known[edge.Target] {
			missing = append(missing, fmt.Sprintf("target %q", edge.Target))
		}

		if len(missing) > 0 {
			result.Errors = append(result.Errors, models.Issue{
				EdgeID:   edge.ID,
				Severity: models.SeverityError,
				Type:     models.IssueDanglingEdge,
				Message: fmt.Sprintf("Connection %s references missing %s",
					edge.ID, strings.Join(missing, " and ")),
			})

			continue
		}

		valid = append(valid, edge)
	}

	return valid
}

// hasCycle runs an iterative depth-first search over the graph, starting from every node in order.
func hasCycle(nodes []*models.Node, edges []*models.Edge) bool {
	adjacency := make(map[string][]string, len(nodes))
	for _, edge := range edges {
		adjacency[edge.Source] = append(adjacency[edge.Source], edge.Target)
	}

	type frame struct {
		id   string
		next int
	}

	visited := make(map[string]bool, len(nodes))
	onStack := make(map[string]bool, len(nodes))

	for _, start := range nodes {
		if start == nil || visited[start.ID] {
			continue
		}

		stack := []frame{{id: start.ID}}
		onStack[start.ID] = true

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			neighbours := adjacency[top.id]

			if top.next >= len(neighbours) {
				onStack[top.id] = false
				visited[top.id] = true
				stack = stack[:len(stack)-1]

				continue
			}

			next := neighbours[top.next]
			top.next++

			if onStack[next] {
				return true
			}

			if !visited[next] {
				onStack[next] = true
				stack = append(stack, frame{id: next})
			}
		}
	}

	return false
}

type deviceKey struct {
	controllerID string
	port         int
}

func (k deviceKey) String() string {
	return k.controllerID + ":" + strconv.Itoa(k.port)
}

func checkDuplicateTargets(nodes []*models.Node, result *StructureResult) {
	groups := make(map[deviceKey][]*models.Node)
	order := make([]deviceKey, 0)

	for _, node := range nodes {
		if node == nil || node.Kind != models.NodeKindAction {
			continue
		}

		config, ok := node.ActionConfig()
		if !ok || config.ControllerID == "" || config.Port == nil {
			continue
		}

		key := deviceKey{controllerID: config.ControllerID, port: int(*config.Port)}
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}

		groups[key] = append(groups[key], node)
	}

	for _, key := range order {
		members := groups[key]
		if len(members) < 2 {
			continue
		}

		labels := make([]string, 0, len(members))
		for _, member := range members {
			labels = append(labels, strconv.Quote(member.Label()))
		}

		first := members[0]
		result.Warnings = append(result.Warnings, models.Issue{
			NodeID:         first.ID,
			NodeLabel:      first.Label(),
			RelatedNodeIDs: nodeIDs(members),
			Severity:       models.SeverityWarning,
			Type:           models.IssueDuplicateDeviceTarget,
			Message: fmt.Sprintf("Device %s is targeted by %d actions (%s); the last one to run wins",
				key, len(members), strings.Join(labels, ", ")),
		})
	}
}

func nodeIDs(nodes []*models.Node) []string {
	ids := make([]string, 0, len(nodes))
	for _, node := range nodes {
		ids = append(ids, node.ID)
	}

	return ids
}
