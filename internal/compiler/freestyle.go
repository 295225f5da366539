package compiler

import "encoding/xml"

// freestyleProject is the hudson <project> document for a freestyle job.
// Element order matches what Jenkins writes back, so a round-trip through
// the server stays diff-stable.
type freestyleProject struct {
	XMLName          xml.Name  `xml:"project"`
	Actions          struct{}  `xml:"actions"`
	Description      string    `xml:"description"`
	KeepDependencies bool      `xml:"keepDependencies"`
	Properties       struct{}  `xml:"properties"`
	SCM              classAttr `xml:"scm"`
	AssignedNode     string    `xml:"assignedNode,omitempty"`
	CanRoam          bool      `xml:"canRoam"`
	Disabled         bool      `xml:"disabled"`
	DisplayName      string    `xml:"displayName,omitempty"`
	BlockDownstream  bool      `xml:"blockBuildWhenDownstreamBuilding"`
	BlockUpstream    bool      `xml:"blockBuildWhenUpstreamBuilding"`
	ConcurrentBuild  bool      `xml:"concurrentBuild"`
	QuietPeriod      int       `xml:"quietPeriod,omitempty"`
	Builders         struct{}  `xml:"builders"`
	Publishers       struct{}  `xml:"publishers"`
	BuildWrappers    struct{}  `xml:"buildWrappers"`
}

// renderFreestyle emits the default job type: a plain hudson project shell
// with the general options the definition sets.
func renderFreestyle(def Definition, _ Options) (any, error) {
	d := def.Data

	node := d.str("assigned-node", "")

	return &freestyleProject{
		Description:      managedDescription(d.str("description", "")),
		KeepDependencies: d.boolVal("keep-dependencies", false),
		SCM:              classAttr{Class: "hudson.scm.NullSCM"},
		AssignedNode:     node,
		// A job may roam across executors unless pinned to a node.
		CanRoam:         node == "",
		Disabled:        d.boolVal("disabled", false),
		DisplayName:     d.str("display-name", ""),
		BlockDownstream: d.boolVal("block-downstream", false),
		BlockUpstream:   d.boolVal("block-upstream", false),
		ConcurrentBuild: d.boolVal("concurrent", false),
		QuietPeriod:     d.intVal("quiet-period", 0),
	}, nil
}
