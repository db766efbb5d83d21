package wizard

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoinAndSplitName(t *testing.T) {
	assert.Equal(t, "山田 太郎", JoinName(" 山田", "太郎 "))
	assert.Equal(t, "山田", JoinName("山田", ""))

	last, first := SplitName("山田　太郎")
	assert.Equal(t, "山田", last)
	assert.Equal(t, "太郎", first)

	last, first = SplitName("Yamada Taro Jr")
	assert.Equal(t, "Yamada", last)
	assert.Equal(t, "Taro Jr", first)

	last, first = SplitName("山田太郎")
	assert.Equal(t, "山田太郎", last)
	assert.Empty(t, first)
}

func TestArchitectClassesAreExclusive(t *testing.T) {
	q := ParseQualifications("")
	q.Check(QualTakken)
	q.Check(QualArchitect1st)
	q.Check(QualArchitect2nd)
	assert.False(t, q.Has(QualArchitect1st))
	assert.True(t, q.Has(QualArchitect2nd))
	assert.True(t, q.Has(QualTakken))

	q.Check(QualArchitectWooden)
	assert.Equal(t, "takken,architect_wooden", q.String())

	q.Uncheck(QualTakken)
	assert.Equal(t, "architect_wooden", q.String())
}

func TestQualificationSetsAreIndependent(t *testing.T) {
	registration := ParseQualifications("architect_1st")
	edit := ParseQualifications("architect_1st")

	registration.Check(QualArchitect2nd)
	assert.True(t, edit.Has(QualArchitect1st))
	assert.Equal(t, "architect_2nd", registration.String())
}

func TestParseQualificationsKeepsUnknownValues(t *testing.T) {
	q := ParseQualifications("fp, takken")
	assert.Equal(t, "takken,fp", q.String())
}

func TestFreeInputBuilderKeepsPreviousImage(t *testing.T) {
	b := ParseFreeInput(json.RawMessage(`{"texts":["old"],"images":[{"image":"backend/uploads/free/a.png","link":""}]}`))
	b.AddText("紹介文")
	b.AddImage("", "https://example.com")
	b.AddImage("backend/uploads/free/b.png", "")

	raw, err := b.JSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"texts": ["紹介文"],
		"images": [
			{"image": "backend/uploads/free/a.png", "link": "https://example.com"},
			{"image": "backend/uploads/free/b.png", "link": ""}
		]
	}`, string(raw))
}

func TestFreeInputBuilderAcceptsEncodedString(t *testing.T) {
	b := ParseFreeInput(json.RawMessage(`"{\"texts\":[],\"images\":[{\"image\":\"x.png\",\"link\":\"\"}]}"`))
	b.AddImage("", "")
	raw, err := b.JSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"texts":[],"images":[{"image":"x.png","link":""}]}`, string(raw))
}

func TestCommunicationPayloadOrder(t *testing.T) {
	f := NewCommunicationForm()
	f.SNS.Append(CommunicationEntry{MethodType: "instagram", Value: "https://instagram.com/a", Active: true})
	f.MessageApps.Append(CommunicationEntry{MethodType: "chatwork", Value: "cw-123", Active: true})
	line := f.MessageApps.Insert(0, CommunicationEntry{MethodType: "line", Value: "https://line.me/a", Active: true})
	f.MessageApps.Append(CommunicationEntry{MethodType: "messenger", Value: ""})
	f.SNS.Append(CommunicationEntry{MethodType: "myspace", Value: "https://myspace.com/a"})
	require.NoError(t, f.MessageApps.Move(line, 5))

	p, err := f.Payload()
	require.NoError(t, err)
	require.NotNil(t, p.CommunicationMethods)
	assert.Equal(t, []CommunicationMethod{
		{MethodType: "chatwork", MethodID: "cw-123", DisplayOrder: 0, IsActive: true},
		{MethodType: "line", MethodURL: "https://line.me/a", DisplayOrder: 1, IsActive: true},
		{MethodType: "instagram", MethodURL: "https://instagram.com/a", DisplayOrder: 2, IsActive: true},
	}, *p.CommunicationMethods)
}

func TestPersonalInfoPayload(t *testing.T) {
	f := &PersonalInfoForm{
		LastName:       "山田",
		FirstName:      "太郎",
		MobilePhone:    "090-0000-0000",
		BirthDate:      "1990-04-01",
		Qualifications: ParseQualifications("takken"),
	}
	p, err := f.Payload()
	require.NoError(t, err)
	assert.Equal(t, "山田 太郎", *p.Name)
	assert.Equal(t, "takken", *p.Qualifications)
	assert.Nil(t, p.FreeInput)

	f.BirthDate = "1990/04/01"
	_, err = f.Payload()
	assert.EqualError(t, err, "生年月日が不正です")

	f.BirthDate = ""
	f.MobilePhone = ""
	_, err = f.Payload()
	assert.EqualError(t, err, "携帯電話番号は必須です")
}

func TestPayloadOmitsUnsentFields(t *testing.T) {
	p, err := (&TechToolsForm{Selected: []string{"mdb", "bogus", "rlp", "mdb"}}).Payload()
	require.NoError(t, err)

	raw, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"tech_tools":[
		{"tool_type":"mdb","display_order":0,"is_active":true},
		{"tool_type":"rlp","display_order":1,"is_active":true}
	]}`, string(raw))

	empty := NewHeaderGreetingForm()
	p, err = empty.Payload()
	require.NoError(t, err)
	raw, err = json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"company_name":"","greetings":[]}`, string(raw))
}
