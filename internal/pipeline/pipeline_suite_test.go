package pipeline

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/ajitpratap0/nebula-convert/pkg/archive"
	"github.com/ajitpratap0/nebula-convert/pkg/config"
	"github.com/ajitpratap0/nebula-convert/pkg/input"
	"github.com/ajitpratap0/nebula-convert/pkg/testutil"
)

type roundTripSuite struct {
	testutil.ConversionSuite
	pipeline *Pipeline
}

func (s *roundTripSuite) SetupTest() {
	s.ConversionSuite.SetupTest()
	cfg := config.Default()
	cfg.Output.WorkDir = s.Dir
	p, err := New(cfg, s.Logger)
	s.Require().NoError(err)
	s.pipeline = p
}

// artifact converts name/content and returns one artifact of the archive
func (s *roundTripSuite) artifact(name, content, artifact string) string {
	report, err := s.pipeline.Run(s.Ctx, Request{Input: input.New(name, []byte(content))})
	s.Require().NoError(err)
	s.Require().NoError(report.Warning)

	result, err := archive.Read(report.Archive, archive.Zip, report.Manifest)
	s.Require().NoError(err)
	data, ok := result.Get(artifact)
	s.Require().True(ok, "missing %s in %v", artifact, result.Names())
	return string(data)
}

func (s *roundTripSuite) TestTabularThroughHierarchical() {
	json := s.artifact("people.csv", testutil.PeopleCSV, "converted_file.json")
	s.Equal(testutil.PeopleCSV, s.artifact("people.json", json, "converted_file.csv"))
}

func (s *roundTripSuite) TestTabularThroughTree() {
	yml := s.artifact("people.csv", testutil.PeopleCSV, "converted_file.yml")
	s.Equal(testutil.PeopleCSV, s.artifact("people.yml", yml, "converted_file.csv"))
}

func (s *roundTripSuite) TestTreeThroughHierarchical() {
	json := s.artifact("people.yaml", testutil.PeopleYAML, "converted_file.json")
	yml := s.artifact("people.json", json, "converted_file.yml")
	s.Equal(s.artifact("people.yaml", testutil.PeopleYAML, "converted_file.csv"),
		s.artifact("people.yml", yml, "converted_file.csv"))
}

func (s *roundTripSuite) TestFixtureOnDisk() {
	src := s.Fixture("in/people.json", testutil.PeopleJSON)
	report, err := s.pipeline.Run(s.Ctx, Request{Location: src, Destination: s.Dir + "/out/"})
	s.Require().NoError(err)
	s.FileExists(report.DeliveredTo)
	s.ElementsMatch([]string{"converted_file.csv", "converted_file.yml"}, report.Artifacts)
}

func TestRoundTripSuite(t *testing.T) {
	suite.Run(t, new(roundTripSuite))
}
