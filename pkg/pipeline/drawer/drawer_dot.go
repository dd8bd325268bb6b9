package drawer

import (
	"fmt"
	"io"
	"os"
	"sort"
	"text/template"
	"time"

	"github.com/dominikbraun/graph"
	"github.com/pkg/errors"
	"gopkg.in/go-playground/colors.v1" //nolint

	"github.com/askiada/go-shaderpipe/internal/store"
	"github.com/askiada/go-shaderpipe/pkg/pipeline/measure"
	"github.com/askiada/go-shaderpipe/pkg/pipeline/model"
)

// DOTDrawer is a drawer that writes the pipeline graph in the DOT language.
type DOTDrawer struct {
	store       store.CustomStore[string, string]
	graph       graph.Graph[string, string]
	items       map[string]struct{}
	dotFileName string
}

// NewDOTDrawer creates a new DOT drawer.
func NewDOTDrawer(dotFileName string) *DOTDrawer {
	st := store.NewMemoryStore[string, string]()

	return &DOTDrawer{
		dotFileName: dotFileName,
		store:       st,
		graph:       graph.NewWithStore(graph.StringHash, st, graph.Directed()),
		items:       make(map[string]struct{}),
	}
}

// AddPass adds a pass to the pipeline graph.
func (d *DOTDrawer) AddPass(name string) error {
	err := d.graph.AddVertex(name, graph.VertexAttribute("shape", "box"))
	if err != nil {
		return errors.Wrapf(err, "unable to add pass %s", name)
	}

	return nil
}

// AddItem adds an item below its pass.
func (d *DOTDrawer) AddItem(passName, itemName string) error {
	err := d.graph.AddVertex(itemName,
		graph.VertexAttribute("shape", "ellipse"),
		graph.VertexAttribute("style", "filled"),
	)
	if err != nil {
		return errors.Wrapf(err, "unable to add item %s", itemName)
	}

	err = d.graph.AddEdge(passName, itemName)
	if err != nil {
		return errors.Wrapf(err, "unable to add edge from %s to %s", passName, itemName)
	}

	d.items[itemName] = struct{}{}

	return d.SetStatus(itemName, model.Unbuilt)
}

// AddDependency adds a dashed link between two passes.
func (d *DOTDrawer) AddDependency(producerName, consumerName string) error {
	err := d.graph.AddEdge(producerName, consumerName,
		graph.EdgeAttribute("style", "dashed"),
		graph.EdgeAttribute("color", "blue"),
	)
	if err != nil && !errors.Is(err, graph.ErrEdgeAlreadyExists) {
		return errors.Wrapf(err, "unable to add edge from %s to %s", producerName, consumerName)
	}

	return nil
}

var statusRGB = map[model.BuildState][3]uint8{
	model.Unbuilt:   {200, 200, 200},
	model.Compiling: {255, 165, 0},
	model.Valid:     {120, 200, 120},
	model.Failed:    {255, 0, 0},
}

// SetStatus fills an item with the colour of its build state.
func (d *DOTDrawer) SetStatus(itemName string, state model.BuildState) error {
	if _, ok := d.items[itemName]; !ok {
		return errors.Wrapf(graph.ErrVertexNotFound, "item %s", itemName)
	}

	rgb := statusRGB[state]
	colour, err := colors.RGB(rgb[0], rgb[1], rgb[2])
	if err != nil {
		return errors.Wrap(err, "unable to get colour")
	}

	err = d.store.UpdateVertex(itemName,
		graph.VertexAttribute("fillcolor", colour.ToHEX().String()),
		graph.VertexAttribute("tooltip", state.String()),
	)
	if err != nil {
		return errors.Wrap(err, "unable to update item status")
	}

	return nil
}

// Draw creates a DOT file with the pipeline graph.
func (d *DOTDrawer) Draw() error {
	file, err := os.Create(d.dotFileName)
	if err != nil {
		return errors.Wrapf(err, "unable to create file %s", d.dotFileName)
	}
	defer file.Close()

	err = d.Render(file)
	if err != nil {
		return errors.Wrapf(err, "unable to create dot file %s", d.dotFileName)
	}

	return nil
}

// Render writes the DOT description to wrt.
func (d *DOTDrawer) Render(wrt io.Writer) error {
	return dot(d.graph, wrt)
}

const maxRGB = 240

// AddMeasure colours item borders from blue (fastest) to red (slowest) and
// labels them with their average execution time.
func (d *DOTDrawer) AddMeasure(msr measure.Measure) error {
	elapsed := make(map[time.Duration]string)
	sorted := []time.Duration{}

	for name, mt := range msr.AllMetrics() {
		if _, ok := d.items[name]; !ok {
			continue
		}
		avg := mt.AVGDuration()
		if avg == 0 {
			continue
		}
		if _, ok := elapsed[avg]; ok {
			continue
		}
		elapsed[avg] = ""
		sorted = append(sorted, avg)
	}

	if len(sorted) == 0 {
		return nil
	}

	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i] > sorted[j]
	})

	maxValue := sorted[0]
	minValue := sorted[len(sorted)-1]

	for curr := range elapsed {
		fraction := 1.0
		if maxValue > minValue {
			fraction = float64(curr-minValue) / float64(maxValue-minValue)
		}

		red := maxRGB * fraction
		blue := maxRGB - maxRGB*fraction

		colour, err := colors.RGB(uint8(red), 0, uint8(blue)) //nolint
		if err != nil {
			return errors.Wrap(err, "unable to get colour")
		}

		elapsed[curr] = colour.ToHEX().String()
	}

	for name, mt := range msr.AllMetrics() {
		if _, ok := d.items[name]; !ok {
			continue
		}

		avg := mt.AVGDuration()
		label := "avg: " + avg.String()
		if skips := len(mt.Skips()); skips > 0 {
			label += fmt.Sprintf(", skipped: %d reasons", skips)
		}

		opts := []func(*graph.VertexProperties){graph.VertexAttribute("xlabel", label)}
		if colour, ok := elapsed[avg]; ok && avg != 0 {
			opts = append(opts, graph.VertexAttribute("color", colour), graph.VertexAttribute("penwidth", "3"))
		}

		err := d.store.UpdateVertex(name, opts...)
		if err != nil {
			return errors.Wrap(err, "unable to update item metrics")
		}
	}

	return nil
}

//nolint:lll //this is a template
const dotTemplate = `strict {{.GraphType}} {
	{{range $k, $v := .Attributes}}
		{{$k}}="{{$v}}";
	{{end}}
	{{range $s := .Statements}}
		"{{.Source}}" {{if .Target}}{{$.EdgeOperator}} "{{.Target}}" [ {{range $k, $v := .EdgeAttributes}}{{$k}}="{{$v}}", {{end}} weight={{.EdgeWeight}} ]{{else}}[ {{range $k, $v := .HTMLAttributes}}{{$k}}={{$v}}, {{end}} {{range $k, $v := .SourceAttributes}}{{$k}}="{{$v}}", {{end}} weight={{.SourceWeight}} ]{{end}};
	{{end}}
	}
	`

type description struct {
	GraphType    string
	Attributes   map[string]string
	EdgeOperator string
	Statements   []statement
}

type statement struct {
	Source           interface{}
	Target           interface{}
	SourceAttributes map[string]string
	HTMLAttributes   map[string]string
	EdgeAttributes   map[string]string
	SourceWeight     int
	EdgeWeight       int
}

func dot[K comparable, T any](g graph.Graph[K, T], wrt io.Writer, options ...func(*description)) error {
	desc, err := generateDOT(g, options...)
	if err != nil {
		return errors.Wrap(err, "failed to generate DOT description")
	}

	return renderDOT(wrt, desc)
}

// GraphAttribute is a functional option for the [dot] function.
func GraphAttribute(key, value string) func(*description) {
	return func(d *description) {
		d.Attributes[key] = value
	}
}

func generateDOT[K comparable, T any](gra graph.Graph[K, T], options ...func(*description)) (description, error) {
	desc := description{
		GraphType:    "graph",
		Attributes:   make(map[string]string),
		EdgeOperator: "--",
		Statements:   make([]statement, 0),
	}

	for _, option := range options {
		option(&desc)
	}

	if gra.Traits().IsDirected {
		desc.GraphType = "digraph"
		desc.EdgeOperator = "->"
	}

	adjacencyMap, err := gra.AdjacencyMap()
	if err != nil {
		return desc, errors.Wrap(err, "unable to get adjacency map")
	}

	vertices := make([]K, 0, len(adjacencyMap))
	for vertex := range adjacencyMap {
		vertices = append(vertices, vertex)
	}
	sort.Slice(vertices, func(i, j int) bool {
		return fmt.Sprint(vertices[i]) < fmt.Sprint(vertices[j])
	})

	for _, vertex := range vertices {
		_, sourceProperties, err := gra.VertexWithProperties(vertex)
		if err != nil {
			return desc, errors.Wrap(err, "unable to get vertex properties")
		}

		attributes := make(map[string]string, len(sourceProperties.Attributes))
		htmlAttributes := make(map[string]string)

		for k, v := range sourceProperties.Attributes {
			if k == "xlabel" {
				htmlAttributes["label"] = fmt.Sprintf(`<%+v <BR /> <FONT POINT-SIZE="12">%s</FONT>>`, vertex, v)
				continue
			}
			attributes[k] = v
		}

		desc.Statements = append(desc.Statements, statement{
			Source:           vertex,
			SourceWeight:     sourceProperties.Weight,
			SourceAttributes: attributes,
			HTMLAttributes:   htmlAttributes,
		})

		targets := make([]K, 0, len(adjacencyMap[vertex]))
		for target := range adjacencyMap[vertex] {
			targets = append(targets, target)
		}
		sort.Slice(targets, func(i, j int) bool {
			return fmt.Sprint(targets[i]) < fmt.Sprint(targets[j])
		})

		for _, target := range targets {
			edge := adjacencyMap[vertex][target]
			desc.Statements = append(desc.Statements, statement{
				Source:         vertex,
				Target:         target,
				EdgeWeight:     edge.Properties.Weight,
				EdgeAttributes: edge.Properties.Attributes,
			})
		}
	}

	return desc, nil
}

func renderDOT(wrt io.Writer, desc description) error {
	tpl, err := template.New("dotTemplate").Parse(dotTemplate)
	if err != nil {
		return errors.Wrap(err, "failed to parse template")
	}

	err = tpl.Execute(wrt, desc)
	if err != nil {
		return errors.Wrap(err, "unable to execute template")
	}

	return nil
}

var _ Drawer = (*DOTDrawer)(nil)
