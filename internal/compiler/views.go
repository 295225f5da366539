package compiler

import "encoding/xml"

// Pinned fallback versions, used when no live plugin inventory is available
// (offline render, or a server whose inventory could not be fetched).
const (
	buildPipelinePluginName    = "build-pipeline-plugin"
	defaultBuildPipelineVer    = "1.4.3"
	deliveryPipelinePluginName = "delivery-pipeline-plugin"
)

// Console output link styles the build-pipeline plugin accepts. Anything
// else falls back to Lightbox.
var linkStyles = map[string]bool{
	"Lightbox":   true,
	"New Window": true,
}

// buildPipelineView is the BuildPipelineView document
// (au.com.centrumsystems build-pipeline plugin).
type buildPipelineView struct {
	XMLName                  xml.Name    `xml:"au.com.centrumsystems.hudson.plugin.buildpipeline.BuildPipelineView"`
	Plugin                   string      `xml:"plugin,attr"`
	Name                     string      `xml:"name"`
	Description              string      `xml:"description"`
	FilterExecutors          bool        `xml:"filterExecutors"`
	FilterQueue              bool        `xml:"filterQueue"`
	Properties               classAttr   `xml:"properties"`
	GridBuilder              gridBuilder `xml:"gridBuilder"`
	NoOfDisplayedBuilds      string      `xml:"noOfDisplayedBuilds"`
	BuildViewTitle           string      `xml:"buildViewTitle"`
	ConsoleOutputLinkStyle   string      `xml:"consoleOutputLinkStyle"`
	CSSUrl                   string      `xml:"cssUrl"`
	TriggerOnlyLatestJob     bool        `xml:"triggerOnlyLatestJob"`
	AlwaysAllowManualTrigger bool        `xml:"alwaysAllowManualTrigger"`
	ShowPipelineParameters   bool        `xml:"showPipelineParameters"`
	ShowParametersInHeaders  bool        `xml:"showPipelineParametersInHeaders"`
	StartsWithParameters     bool        `xml:"startsWithParameters"`
	RefreshFrequency         string      `xml:"refreshFrequency"`
	ShowDefinitionHeader     bool        `xml:"showPipelineDefinitionHeader"`
}

type gridBuilder struct {
	Class    string `xml:"class,attr"`
	FirstJob string `xml:"firstJob"`
}

// renderBuildPipeline emits a Build Pipeline view rooted at the definition's
// first-job. The plugin attribute pins the installed plugin version when a
// live inventory is available.
func renderBuildPipeline(def Definition, opts Options) (any, error) {
	d := def.Data

	version := defaultBuildPipelineVer
	if v, ok := opts.PluginVersions[buildPipelinePluginName]; ok && v != "" {
		version = v
	}

	linkStyle := d.str("link-style", "Lightbox")
	if !linkStyles[linkStyle] {
		linkStyle = "Lightbox"
	}

	return &buildPipelineView{
		Plugin:          buildPipelinePluginName + "@" + version,
		Name:            def.Name,
		Description:     managedDescription(d.str("description", "")),
		FilterExecutors: d.boolVal("filter-executors", false),
		FilterQueue:     d.boolVal("filter-queue", false),
		Properties:      classAttr{Class: "hudson.model.View$PropertyList"},
		GridBuilder: gridBuilder{
			Class:    "au.com.centrumsystems.hudson.plugin.buildpipeline.DownstreamProjectGridBuilder",
			FirstJob: d.str("first-job", ""),
		},
		NoOfDisplayedBuilds:      d.str("no-of-displayed-builds", "1"),
		BuildViewTitle:           d.str("title", ""),
		ConsoleOutputLinkStyle:   linkStyle,
		CSSUrl:                   d.str("css-url", ""),
		TriggerOnlyLatestJob:     d.boolVal("latest-job-only", false),
		AlwaysAllowManualTrigger: d.boolVal("manual-trigger", false),
		ShowPipelineParameters:   d.boolVal("show-parameters", false),
		ShowParametersInHeaders:  d.boolVal("parameters-in-headers", false),
		StartsWithParameters:     d.boolVal("start-with-parameters", false),
		RefreshFrequency:         d.str("refresh-frequency", "3"),
		ShowDefinitionHeader:     d.boolVal("definition-header", false),
	}, nil
}

// deliveryPipelineView is the DeliveryPipelineView document (Diabol
// delivery-pipeline plugin).
type deliveryPipelineView struct {
	XMLName                xml.Name        `xml:"se.diabol.jenkins.pipeline.DeliveryPipelineView"`
	Plugin                 string          `xml:"plugin,attr"`
	Name                   string          `xml:"name"`
	Description            string          `xml:"description"`
	FilterExecutors        bool            `xml:"filterExecutors"`
	FilterQueue            bool            `xml:"filterQueue"`
	Properties             classAttr       `xml:"properties"`
	ComponentSpecs         componentSpecs  `xml:"componentSpecs"`
	NoOfPipelines          int             `xml:"noOfPipelines"`
	ShowAggregatedPipeline bool            `xml:"showAggregatedPipeline"`
	NoOfColumns            int             `xml:"noOfColumns"`
	Sorting                string          `xml:"sorting"`
	ShowAvatars            bool            `xml:"showAvatars"`
	UpdateInterval         int             `xml:"updateInterval"`
	ShowChanges            bool            `xml:"showChanges"`
	AllowManualTriggers    bool            `xml:"allowManualTriggers"`
	ShowTotalBuildTime     bool            `xml:"showTotalBuildTime"`
	AllowRebuild           bool            `xml:"allowRebuild"`
	AllowPipelineStart     bool            `xml:"allowPipelineStart"`
	ShowDescription        bool            `xml:"showDescription"`
	ShowPromotions         bool            `xml:"showPromotions"`
	ShowTestResults        bool            `xml:"showTestResults"`
	ShowStaticAnalysis     bool            `xml:"showStaticAnalysisResults"`
	RegexpFirstJobs        regexpFirstJobs `xml:"regexpFirstJobs"`
}

type componentSpecs struct {
	Specs []componentSpec `xml:"se.diabol.jenkins.pipeline.DeliveryPipelineView_-ComponentSpec"`
}

type componentSpec struct {
	Name     string `xml:"name"`
	FirstJob string `xml:"firstJob"`
	LastJob  string `xml:"lastJob"`
}

type regexpFirstJobs struct {
	Specs []regexpSpec `xml:"se.diabol.jenkins.pipeline.DeliveryPipelineView_-RegExpSpec"`
}

type regexpSpec struct {
	Regexp string `xml:"regexp"`
}

// renderDeliveryPipeline emits a Delivery Pipeline view. Components come
// from an explicit `components` list; absent that, the view's own
// name/first-job/last-job form a single component.
func renderDeliveryPipeline(def Definition, _ Options) (any, error) {
	d := def.Data

	var specs []componentSpec

	for _, c := range d.mapList("components") {
		specs = append(specs, componentSpec{
			Name:     c.str("name", ""),
			FirstJob: c.str("first-job", ""),
			LastJob:  c.str("last-job", ""),
		})
	}

	if len(specs) == 0 {
		specs = append(specs, componentSpec{
			Name:     def.Name,
			FirstJob: d.str("first-job", ""),
			LastJob:  d.str("last-job", ""),
		})
	}

	var regexps []regexpSpec
	for _, re := range d.strList("regexp-first-jobs") {
		regexps = append(regexps, regexpSpec{Regexp: re})
	}

	return &deliveryPipelineView{
		Plugin:                 deliveryPipelinePluginName,
		Name:                   def.Name,
		Description:            managedDescription(d.str("description", "")),
		FilterExecutors:        d.boolVal("filter-executors", false),
		FilterQueue:            d.boolVal("filter-queue", false),
		Properties:             classAttr{Class: "hudson.model.View$PropertyList"},
		ComponentSpecs:         componentSpecs{Specs: specs},
		NoOfPipelines:          d.intVal("no-of-pipelines", 3),
		ShowAggregatedPipeline: d.boolVal("show-aggregated-pipeline", false),
		NoOfColumns:            d.intVal("no-of-columns", 3),
		Sorting:                d.str("sorting", "none"),
		ShowAvatars:            d.boolVal("show-avatars", false),
		UpdateInterval:         d.intVal("update-interval", 10),
		ShowChanges:            d.boolVal("show-changes", false),
		AllowManualTriggers:    d.boolVal("allow-manual-triggers", false),
		ShowTotalBuildTime:     d.boolVal("show-total-build-time", false),
		AllowRebuild:           d.boolVal("allow-rebuild", false),
		AllowPipelineStart:     d.boolVal("allow-pipeline-start", false),
		ShowDescription:        d.boolVal("show-description", false),
		ShowPromotions:         d.boolVal("show-promotions", false),
		ShowTestResults:        d.boolVal("show-test-results", false),
		ShowStaticAnalysis:     d.boolVal("show-static-analysis-results", false),
		RegexpFirstJobs:        regexpFirstJobs{Specs: regexps},
	}, nil
}

// listView is the stock hudson.model.ListView document.
type listView struct {
	XMLName         xml.Name  `xml:"hudson.model.ListView"`
	Name            string    `xml:"name"`
	Description     string    `xml:"description"`
	FilterExecutors bool      `xml:"filterExecutors"`
	FilterQueue     bool      `xml:"filterQueue"`
	Properties      classAttr `xml:"properties"`
	JobNames        jobNames  `xml:"jobNames"`
	Columns         struct{}  `xml:"columns"`
}

type jobNames struct {
	Comparator classAttr `xml:"comparator"`
	Jobs       []string  `xml:"string"`
}

// renderListView emits a plain list view enumerating the named jobs.
func renderListView(def Definition, _ Options) (any, error) {
	d := def.Data

	return &listView{
		Name:            def.Name,
		Description:     managedDescription(d.str("description", "")),
		FilterExecutors: d.boolVal("filter-executors", false),
		FilterQueue:     d.boolVal("filter-queue", false),
		Properties:      classAttr{Class: "hudson.model.View$PropertyList"},
		JobNames: jobNames{
			Comparator: classAttr{Class: "hudson.util.CaseInsensitiveComparator"},
			Jobs:       d.strList("jobs"),
		},
	}, nil
}
